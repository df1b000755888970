// Package audio converts arbitrary compressed audio buffers into the fixed
// PCM format the speech decoders consume: s16le, mono, 16 kHz.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"github.com/signbridge/backend/internal/speech"
)

// Normalizer decodes compressed audio by delegating to an ffmpeg child
// process. Buffers that are already WAV at the target format are unpacked
// in-process without spawning anything.
type Normalizer struct {
	ffmpegPath string
	timeout    time.Duration
	logger     *log.Logger
}

// NewNormalizer builds a Normalizer. ffmpegPath defaults to "ffmpeg" when
// empty.
func NewNormalizer(ffmpegPath string, timeout time.Duration, logger *log.Logger) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{ffmpegPath: ffmpegPath, timeout: timeout, logger: logger}
}

// DecodeToPCM converts a compressed audio buffer (MP3, M4A, WAV, ...) to
// raw PCM s16le mono at 16 kHz. A non-zero ffmpeg exit is a decode failure
// for this one request, not for the connection.
func (n *Normalizer) DecodeToPCM(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}

	if pcm, ok := tryDecodeWAV(data); ok {
		return pcm, nil
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	file, err := os.CreateTemp(os.TempDir(), "signbridge_audio_*")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	cmd := exec.CommandContext(ctx, n.ffmpegPath,
		"-i", file.Name(),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", speech.SampleRate),
		"-",
	)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", err, lastLine(stderr.Bytes()))
	}

	return stdout.Bytes(), nil
}

// lastLine trims ffmpeg's chatty stderr down to its final line, which
// carries the actual error.
func lastLine(out []byte) string {
	out = bytes.TrimRight(out, "\n")
	if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	}
	return string(out)
}
