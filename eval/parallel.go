package eval

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Instance is one evaluated WSD instance for batch evaluation.
type Instance struct {
	ID           string
	GroundTruths []string
	Predictions  []string
	Attributes   map[string]string
}

// merge concatenates another aggregator's per-group record sequences into
// this one. Both must share the same configuration; group keys missing on
// either side are adopted wholesale.
func (a *Aggregator) merge(b *Aggregator) {
	for key, src := range b.groups {
		dst, ok := a.groups[key]
		if !ok {
			a.groups[key] = src
			continue
		}
		if src.Leaf() {
			dst.Records = append(dst.Records, src.Records...)
			continue
		}
		for value, leaf := range src.Children {
			if existing, ok := dst.Children[value]; ok {
				existing.Records = append(existing.Records, leaf.Records...)
			} else {
				dst.Children[value] = leaf
			}
		}
	}
}

// EvaluateParallel scores instances across workers, each owning a private
// aggregator, and reduces them by concatenating per-group record sequences
// before a single finalization. Averaging is order-independent, so the
// result matches a sequential pass over the same instances.
func EvaluateParallel(ctx context.Context, instances []Instance, workers int, opts AggregatorOptions) (map[string]*SummaryNode, error) {
	if workers <= 0 {
		workers = 4
	}
	if workers > len(instances) && len(instances) > 0 {
		workers = len(instances)
	}

	aggs := make([]*Aggregator, workers)
	for i := range aggs {
		agg, err := NewAggregator(opts)
		if err != nil {
			return nil, err
		}
		aggs[i] = agg
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(instances); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				inst := instances[i]
				if err := aggs[w].Record(inst.ID, inst.GroundTruths, inst.Predictions, inst.Attributes); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root := aggs[0]
	for _, agg := range aggs[1:] {
		root.merge(agg)
	}
	return root.Finalize(), nil
}
