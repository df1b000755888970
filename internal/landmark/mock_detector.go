package landmark

import "context"

type mockDetector struct {
	points []Point
	err    error
}

// NewMockDetector returns a Detector that always reports the given points.
// Pass nil to simulate "no hand detected".
func NewMockDetector(points []Point, err error) Detector {
	return &mockDetector{points: points, err: err}
}

func (m *mockDetector) Detect(_ context.Context, _ []byte) ([]Point, error) {
	return m.points, m.err
}

func (m *mockDetector) Close() error { return nil }
