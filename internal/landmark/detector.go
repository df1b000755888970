package landmark

import "context"

// Detector locates hand landmarks in an encoded image. Implementations
// return either exactly NumLandmarks points or an empty slice when no
// hand is present. Detectors are safe for concurrent use unless noted.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Point, error)
	Close() error
}
