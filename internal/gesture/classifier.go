package gesture

// Classifier maps a feature vector to a single-frame prediction. A nil
// feature vector (no hand) must yield (NONE, 0.0). Implementations are pure
// functions so a trained model can replace the heuristic without touching
// the stabilizer.
type Classifier func(features []float64) Prediction

// HeuristicClassifier buckets the mean fingertip-to-palm-center distance.
// Smaller distance means a more closed hand. The breakpoints are a
// placeholder for a trained classifier; only the contract shape matters.
func HeuristicClassifier(features []float64) Prediction {
	if features == nil {
		return Prediction{Token: TokenNone, Confidence: 0.0}
	}

	tips := features[len(features)-5:]
	var sum float64
	for _, d := range tips {
		sum += d
	}
	avg := sum / float64(len(tips))

	switch {
	case avg < 0.3:
		return Prediction{Token: TokenStop, Confidence: 0.85}
	case avg < 0.5:
		return Prediction{Token: TokenHello, Confidence: 0.82}
	case avg < 0.7:
		return Prediction{Token: TokenYes, Confidence: 0.78}
	default:
		return Prediction{Token: TokenNone, Confidence: 0.9}
	}
}
