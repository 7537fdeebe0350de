// Package eval scores WSD predictions: per-instance relevance-set metrics,
// breakdown-group accumulation, and the macro/micro aggregation conventions
// of the two reference scorers used in the WSD literature.
package eval

// Label collections are treated as sets: duplicates collapse, order is
// irrelevant.

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for l := range a {
		if _, ok := b[l]; ok {
			n++
		}
	}
	return n
}

// Precision is |pred ∩ gt| / |pred|, or 0.0 when pred is empty.
func Precision(groundTruths, predictions []string) float64 {
	pred := toSet(predictions)
	if len(pred) == 0 {
		return 0.0
	}
	return float64(intersectionSize(pred, toSet(groundTruths))) / float64(len(pred))
}

// Recall is |pred ∩ gt| / |gt|, or 0.0 when gt is empty.
func Recall(groundTruths, predictions []string) float64 {
	gt := toSet(groundTruths)
	if len(gt) == 0 {
		return 0.0
	}
	return float64(intersectionSize(toSet(predictions), gt)) / float64(len(gt))
}

// F1 is the harmonic mean of precision and recall, defined as 0.0 when both
// are zero so it never divides by zero.
func F1(precision, recall float64) float64 {
	if precision == 0 && recall == 0 {
		return 0.0
	}
	return 2 * precision * recall / (precision + recall)
}

// Accuracy is exact-set-match (subset accuracy): 1.0 iff pred == gt as sets.
// This matches sklearn's accuracy_score for multilabel inputs, not a
// per-label rate.
func Accuracy(groundTruths, predictions []string) float64 {
	gt := toSet(groundTruths)
	pred := toSet(predictions)
	if len(gt) != len(pred) {
		return 0.0
	}
	for l := range gt {
		if _, ok := pred[l]; !ok {
			return 0.0
		}
	}
	return 1.0
}

// Record is the evaluation of a single WSD instance. The per-instance
// prediction and ground-truth singleton maps ride along so group-level
// sense-pooled macro scores can be computed at finalization. Records are
// never mutated after creation.
type Record struct {
	Precision float64
	Recall    float64
	F1Score   float64
	Accuracy  float64

	Predictions  map[string][]string
	GroundTruths map[string][]string
}

// ComputeRecord evaluates one instance.
func ComputeRecord(instanceID string, groundTruths, predictions []string) Record {
	p := Precision(groundTruths, predictions)
	r := Recall(groundTruths, predictions)
	return Record{
		Precision:    p,
		Recall:       r,
		F1Score:      F1(p, r),
		Accuracy:     Accuracy(groundTruths, predictions),
		Predictions:  map[string][]string{instanceID: append([]string(nil), predictions...)},
		GroundTruths: map[string][]string{instanceID: append([]string(nil), groundTruths...)},
	}
}
