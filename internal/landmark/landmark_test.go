package landmark

import (
	"context"
	"math"
	"testing"
)

func TestPointArithmetic(t *testing.T) {
	p := Point{X: 3, Y: 4, Z: 0}
	q := Point{X: 1, Y: 1, Z: 1}

	if got := p.Sub(q); got != (Point{X: 2, Y: 3, Z: -1}) {
		t.Errorf("Sub = %+v", got)
	}
	if got := p.Norm(); got != 5 {
		t.Errorf("Norm = %f, want 5", got)
	}
	if got := p.Scale(2); got != (Point{X: 1.5, Y: 2, Z: 0}) {
		t.Errorf("Scale = %+v", got)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	p := Point{X: 0.1, Y: 0.2, Z: 0.3}
	q := Point{X: 0.7, Y: 0.1, Z: 0.5}

	if d, e := Distance(p, q), Distance(q, p); math.Abs(d-e) > 1e-12 {
		t.Errorf("Distance(p,q) = %f, Distance(q,p) = %f", d, e)
	}
	if Distance(p, p) != 0 {
		t.Error("Distance(p,p) != 0")
	}
}

func TestFingertipIndicesAreTips(t *testing.T) {
	want := [5]int{4, 8, 12, 16, 20}
	if FingertipIndices != want {
		t.Errorf("FingertipIndices = %v, want %v", FingertipIndices, want)
	}
}

func TestMockDetector(t *testing.T) {
	points := make([]Point, NumLandmarks)
	d := NewMockDetector(points, nil)

	got, err := d.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != NumLandmarks {
		t.Errorf("Detect returned %d points, want %d", len(got), NumLandmarks)
	}

	empty := NewMockDetector(nil, nil)
	got, err = empty.Detect(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("empty detector = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestNewExecDetectorValidation(t *testing.T) {
	if _, err := NewExecDetector(""); err == nil {
		t.Error("empty command accepted")
	}
	if _, err := NewExecDetector("python3 landmarker.py --model hand.task"); err != nil {
		t.Errorf("valid command rejected: %v", err)
	}
	if _, err := NewExecDetector(`python3 "unterminated`); err == nil {
		t.Error("unparseable command accepted")
	}
}
