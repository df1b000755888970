package speech

import (
	"encoding/json"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"
)

// voskEngine loads one Vosk model and hands out recognizers backed by it.
// The model is read-only and shared across connections.
type voskEngine struct {
	model *vosk.VoskModel
}

// NewVoskEngine loads the acoustic model at modelPath.
func NewVoskEngine(modelPath string) (Engine, error) {
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}
	return &voskEngine{model: model}, nil
}

func (e *voskEngine) NewDecoder() (Decoder, error) {
	rec, err := vosk.NewRecognizer(e.model, float64(SampleRate))
	if err != nil {
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	rec.SetWords(1)
	return &voskDecoder{rec: rec}, nil
}

func (e *voskEngine) Close() {
	e.model.Free()
}

type voskDecoder struct {
	rec *vosk.VoskRecognizer
}

// voskResult is the JSON shape of Result/FinalResult with words enabled.
type voskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Conf  float64 `json:"conf"`
	} `json:"result"`
}

type voskPartial struct {
	Partial string `json:"partial"`
}

func (d *voskDecoder) Accept(pcm []byte) (bool, error) {
	return d.rec.AcceptWaveform(pcm) != 0, nil
}

func (d *voskDecoder) Partial() string {
	var p voskPartial
	if err := json.Unmarshal([]byte(d.rec.PartialResult()), &p); err != nil {
		return ""
	}
	return p.Partial
}

func (d *voskDecoder) Result() Result {
	return parseVoskResult(d.rec.Result())
}

func (d *voskDecoder) FinalResult() Result {
	return parseVoskResult(d.rec.FinalResult())
}

func (d *voskDecoder) Close() {
	d.rec.Free()
}

func parseVoskResult(raw string) Result {
	var vr voskResult
	if err := json.Unmarshal([]byte(raw), &vr); err != nil {
		return Result{}
	}
	out := Result{Text: vr.Text}
	for _, w := range vr.Result {
		out.Words = append(out.Words, Word{Word: w.Word, Start: w.Start, End: w.End, Conf: w.Conf})
	}
	return out
}
