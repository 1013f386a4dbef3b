package ai

import (
	"math"

	"firewatch/internal/model"
)

// Softmax converts logits to probabilities.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := float64(logits[0])
	for _, l := range logits[1:] {
		if float64(l) > max {
			max = float64(l)
		}
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Decide compares the fire probability (class 0) against smoke and neutral
// combined. Confidence is the probability of the winning side.
func Decide(logits []float32) model.Prediction {
	probs := Softmax(logits)
	if len(probs) == 0 {
		return model.Prediction{}
	}

	fire := probs[0]
	other := 1 - fire
	if fire > other {
		return model.Prediction{IsFire: true, Confidence: model.ClampConfidence(fire)}
	}
	return model.Prediction{IsFire: false, Confidence: model.ClampConfidence(other)}
}
