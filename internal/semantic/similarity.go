package semantic

import "math"

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1,1], or 0 when either vector is empty, zero, or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Score rescales cosine similarity to [0,1] so it composes with the other
// component signals.
func Score(a, b []float32) float64 {
	return (1.0 + CosineSimilarity(a, b)) / 2.0
}
