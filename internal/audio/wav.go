package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/signbridge/backend/internal/speech"
)

// tryDecodeWAV unpacks a WAV buffer without spawning ffmpeg when it is
// already s16 mono at the decoder sample rate. Returns false for anything
// else so the caller falls back to the external decoder.
func tryDecodeWAV(data []byte) ([]byte, bool) {
	if len(data) < 12 || !bytes.HasPrefix(data, []byte("RIFF")) {
		return nil, false
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, false
	}
	if dec.NumChans != 1 || dec.BitDepth != 16 || int(dec.SampleRate) != speech.SampleRate {
		return nil, false
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil || buf == nil {
		return nil, false
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm, true
}

// WriteWAV writes an s16le mono 16 kHz PCM buffer to path as a WAV file.
func WriteWAV(path string, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer file.Close()

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: 1, SampleRate: speech.SampleRate},
		Data:   samples,
	}

	enc := wav.NewEncoder(file, speech.SampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// PCMDuration returns the length in seconds of an s16le mono 16 kHz buffer.
func PCMDuration(pcm []byte) float64 {
	return float64(len(pcm)) / float64(speech.SampleRate*2)
}
