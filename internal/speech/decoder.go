// Package speech wraps an incremental speech decoder with a streaming
// partial/final session and a one-shot whole-buffer transcription mode.
package speech

// Word is a recognized word with timing, in seconds from buffer start.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// Result is a finalized decoder output.
type Result struct {
	Text  string
	Words []Word
}

// Decoder is an incremental speech recognizer consuming PCM s16le mono
// samples at SampleRate. A decoder holds partially-consumed acoustic
// context between Accept calls; it is not safe for concurrent use.
type Decoder interface {
	// Accept feeds a PCM chunk. It reports true when the decoder detected
	// an utterance boundary, making Result available.
	Accept(pcm []byte) (bool, error)
	// Partial returns the in-progress hypothesis for the current utterance.
	Partial() string
	// Result returns and consumes the finalized text for the utterance
	// that Accept just closed.
	Result() Result
	// FinalResult flushes remaining audio and returns the final text with
	// word-level timing.
	FinalResult() Result
	// Close releases decoder resources.
	Close()
}

// Engine creates decoders that share one read-only acoustic model. Engines
// may be used concurrently by multiple connections.
type Engine interface {
	NewDecoder() (Decoder, error)
	Close()
}

// SampleRate is the fixed input rate decoders expect.
const SampleRate = 16000
