package speech

import (
	"fmt"
	"strings"
)

// mockEngine produces scripted decoders for tests and for running the
// server without a speech model.
type mockEngine struct{}

// NewMockEngine returns an Engine whose decoders echo deterministic
// transcripts derived from the amount of audio consumed.
func NewMockEngine() Engine {
	return mockEngine{}
}

func (mockEngine) NewDecoder() (Decoder, error) {
	return &mockDecoder{}, nil
}

func (mockEngine) Close() {}

type mockDecoder struct {
	consumed int
	chunks   int
	closed   bool
}

func (d *mockDecoder) Accept(pcm []byte) (bool, error) {
	d.consumed += len(pcm)
	d.chunks++
	// Declare an utterance boundary every fourth chunk so streaming tests
	// can exercise both partial and final paths.
	return d.chunks%4 == 0, nil
}

func (d *mockDecoder) Partial() string {
	return fmt.Sprintf("partial %d", d.consumed)
}

func (d *mockDecoder) Result() Result {
	return Result{Text: fmt.Sprintf("utterance %d", d.consumed)}
}

func (d *mockDecoder) FinalResult() Result {
	words := []Word{
		{Word: "mock", Start: 0.0, End: 0.4, Conf: 1.0},
		{Word: "transcript", Start: 0.4, End: 1.1, Conf: 1.0},
	}
	texts := make([]string, 0, len(words))
	for _, w := range words {
		texts = append(texts, w.Word)
	}
	return Result{Text: strings.Join(texts, " "), Words: words}
}

func (d *mockDecoder) Close() { d.closed = true }
