package speech

import (
	"fmt"
	"log"
)

// transcribeChunkSize is how many bytes of PCM are fed to the decoder per
// call in one-shot mode, matching the granularity decoders expect.
const transcribeChunkSize = 4000

// StreamResult is a streaming-mode response for one audio chunk.
type StreamResult struct {
	Final bool
	Text  string
}

// Session owns the streaming decoder state for one connection. The
// streaming decoder is created lazily on the first chunk and persists
// across calls so hypotheses improve as more audio arrives. One-shot
// transcriptions always use a fresh decoder and never touch it.
//
// Not safe for concurrent use; the connection feeds chunks serially.
type Session struct {
	engine Engine
	dec    Decoder
	logger *log.Logger
}

// NewSession creates a speech session bound to one connection.
func NewSession(engine Engine, logger *log.Logger) *Session {
	return &Session{engine: engine, logger: logger}
}

// AcceptAudio feeds one PCM chunk to the streaming decoder. An empty chunk
// returns an empty partial without touching decoder state. Decoder failures
// degrade to an empty partial rather than aborting the connection.
func (s *Session) AcceptAudio(pcm []byte) StreamResult {
	if len(pcm) == 0 {
		return StreamResult{Final: false, Text: ""}
	}

	if s.dec == nil {
		dec, err := s.engine.NewDecoder()
		if err != nil {
			s.logger.Printf("speech: failed to create streaming decoder: %v", err)
			return StreamResult{Final: false, Text: ""}
		}
		s.dec = dec
	}

	boundary, err := s.dec.Accept(pcm)
	if err != nil {
		s.logger.Printf("speech: decoder rejected chunk: %v", err)
		return StreamResult{Final: false, Text: ""}
	}

	if boundary {
		return StreamResult{Final: true, Text: s.dec.Result().Text}
	}
	return StreamResult{Final: false, Text: s.dec.Partial()}
}

// TranscribeWithWords decodes a complete PCM buffer from a fresh decoder
// and returns the final text with word-level timing. The connection's
// streaming state is left untouched.
func (s *Session) TranscribeWithWords(pcm []byte) (Result, error) {
	dec, err := s.engine.NewDecoder()
	if err != nil {
		return Result{}, fmt.Errorf("create decoder: %w", err)
	}
	defer dec.Close()

	for off := 0; off < len(pcm); off += transcribeChunkSize {
		end := off + transcribeChunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		if _, err := dec.Accept(pcm[off:end]); err != nil {
			// Malformed PCM degrades to whatever decoded so far.
			s.logger.Printf("speech: transcription chunk rejected at offset %d: %v", off, err)
			break
		}
	}

	return dec.FinalResult(), nil
}

// Close releases the streaming decoder, if any.
func (s *Session) Close() {
	if s.dec != nil {
		s.dec.Close()
		s.dec = nil
	}
}
