package gesture

import (
	"github.com/signbridge/backend/internal/landmark"
)

// FeatureLen is the length of a non-nil feature vector: 21 landmarks times
// 3 coordinates, plus 5 fingertip-to-palm-center distances.
const FeatureLen = landmark.NumLandmarks*3 + 5

// ExtractFeatures converts a landmark set into a translation- and
// scale-invariant feature vector. Returns nil when no hand was detected.
//
// The normalization mirrors what the landmarks themselves cannot provide:
// the wrist becomes the origin (position invariance) and every point is
// divided by the wrist-to-middle-MCP distance (size/distance invariance).
// A zero palm size skips the scaling step instead of dividing by zero.
func ExtractFeatures(points []landmark.Point) []float64 {
	if len(points) == 0 {
		return nil
	}

	translated := make([]landmark.Point, len(points))
	wrist := points[landmark.Wrist]
	for i, p := range points {
		translated[i] = p.Sub(wrist)
	}

	palmSize := translated[landmark.MiddleMCP].Norm()
	if palmSize > 0 {
		for i, p := range translated {
			translated[i] = p.Scale(palmSize)
		}
	}

	features := make([]float64, 0, FeatureLen)
	for _, p := range translated {
		features = append(features, p.X, p.Y, p.Z)
	}

	// Palm center is the mean of wrist, index MCP and pinky MCP; fingertip
	// distances to it capture hand openness in a compact way.
	palmCenter := landmark.Point{
		X: (translated[landmark.Wrist].X + translated[landmark.IndexMCP].X + translated[landmark.PinkyMCP].X) / 3,
		Y: (translated[landmark.Wrist].Y + translated[landmark.IndexMCP].Y + translated[landmark.PinkyMCP].Y) / 3,
		Z: (translated[landmark.Wrist].Z + translated[landmark.IndexMCP].Z + translated[landmark.PinkyMCP].Z) / 3,
	}
	for _, tip := range landmark.FingertipIndices {
		features = append(features, landmark.Distance(translated[tip], palmCenter))
	}

	return features
}
