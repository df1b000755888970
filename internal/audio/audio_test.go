package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signbridge/backend/internal/speech"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// sinePCM generates seconds of s16le mono test tone at the decoder rate.
func sinePCM(seconds float64) []byte {
	samples := int(seconds * float64(speech.SampleRate))
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(speech.SampleRate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestPCMDuration(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want float64
	}{
		{name: "empty", pcm: nil, want: 0},
		{name: "one second", pcm: make([]byte, speech.SampleRate*2), want: 1.0},
		{name: "half second", pcm: make([]byte, speech.SampleRate), want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PCMDuration(tt.pcm); got != tt.want {
				t.Errorf("PCMDuration = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := sinePCM(0.25)
	path := filepath.Join(t.TempDir(), "tone.wav")

	if err := WriteWAV(path, pcm); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}

	decoded, ok := tryDecodeWAV(data)
	if !ok {
		t.Fatal("tryDecodeWAV rejected a file WriteWAV produced")
	}
	if !bytes.Equal(decoded, pcm) {
		t.Errorf("roundtrip mismatch: got %d bytes, want %d bytes", len(decoded), len(pcm))
	}
}

func TestWriteWAVRejectsUnalignedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteWAV(path, make([]byte, 3)); err == nil {
		t.Error("WriteWAV accepted an odd-length payload")
	}
}

func TestTryDecodeWAVRejectsNonWAV(t *testing.T) {
	if _, ok := tryDecodeWAV([]byte("definitely not audio")); ok {
		t.Error("tryDecodeWAV accepted garbage")
	}
	if _, ok := tryDecodeWAV(nil); ok {
		t.Error("tryDecodeWAV accepted nil")
	}
}

func TestDecodeToPCMUsesWAVFastPath(t *testing.T) {
	pcm := sinePCM(0.1)
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAV(path, pcm); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}

	// A bogus ffmpeg path proves the WAV never reaches the child process.
	n := NewNormalizer("/nonexistent/ffmpeg", time.Second, testLogger())
	got, err := n.DecodeToPCM(context.Background(), data)
	if err != nil {
		t.Fatalf("DecodeToPCM: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("decoded %d bytes, want %d", len(got), len(pcm))
	}

	tolerance := 0.01
	if d := PCMDuration(got); math.Abs(d-0.1) > tolerance {
		t.Errorf("decoded duration = %f, want 0.1", d)
	}
}

func TestDecodeToPCMEmptyBufferFails(t *testing.T) {
	n := NewNormalizer("", time.Second, testLogger())
	if _, err := n.DecodeToPCM(context.Background(), nil); err == nil {
		t.Error("DecodeToPCM accepted an empty buffer")
	}
}

func TestDecodeToPCMCorruptBufferFails(t *testing.T) {
	// Corrupt input must surface a decode failure, never a silent empty
	// result. The bogus ffmpeg path also fails, which is equivalent here.
	n := NewNormalizer("/nonexistent/ffmpeg", time.Second, testLogger())
	if _, err := n.DecodeToPCM(context.Background(), []byte("garbage bytes")); err == nil {
		t.Error("DecodeToPCM accepted a corrupt buffer")
	}
}
