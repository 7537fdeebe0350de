package eval

import "sort"

// macroBySense computes the sense-level macro precision/recall/F1 of
// [Maru+, ACL2022] over pooled per-instance predictions and ground truths.
//
// Instances are grouped by gold sense (an instance with several gold labels
// belongs to each of their groups). Within a sense group the pooled counts
// give one precision/recall/F1 triple, and the per-sense values are then
// averaged uniformly: one sense, one vote, regardless of how many instances
// carry it. This must not be confused with the naive per-instance macro
// average.
func macroBySense(groundTruths, predictions map[string][]string) (precision, recall, f1 float64) {
	instancesBySense := map[string][]string{}
	for id, gt := range groundTruths {
		for s := range toSet(gt) {
			instancesBySense[s] = append(instancesBySense[s], id)
		}
	}
	if len(instancesBySense) == 0 {
		return 0, 0, 0
	}

	senses := make([]string, 0, len(instancesBySense))
	for s := range instancesBySense {
		senses = append(senses, s)
	}
	sort.Strings(senses)

	var sumP, sumR, sumF float64
	for _, s := range senses {
		var tp, predTotal, gtTotal int
		for _, id := range instancesBySense[s] {
			gt := toSet(groundTruths[id])
			pred := toSet(predictions[id])
			tp += intersectionSize(pred, gt)
			predTotal += len(pred)
			gtTotal += len(gt)
		}

		var p, r float64
		if predTotal > 0 {
			p = float64(tp) / float64(predTotal)
		}
		if gtTotal > 0 {
			r = float64(tp) / float64(gtTotal)
		}
		sumP += p
		sumR += r
		sumF += F1(p, r)
	}

	n := float64(len(senses))
	return sumP / n, sumR / n, sumF / n
}
