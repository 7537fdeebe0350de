package eval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/open-wsd/wsdkit/sense"
)

// Category selects the label space instances are scored in.
type Category string

const (
	// CategoryLemma scores lemma-sense keys as-is.
	CategoryLemma Category = "lemma"

	// CategoryLexname maps every label to its supersense (lexicographer file
	// name) before scoring, for coarse-grained evaluation.
	CategoryLexname Category = "lexname"
)

// AllGroup is the reserved breakdown group receiving every record.
const AllGroup = "ALL"

// Metric names emitted by Finalize.
const (
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1Score   = "f1_score"
	MetricAccuracy  = "accuracy"

	// Raganato scorer compatibility. With single-label exact-match
	// predictions the micro-averaged recall that scorer reports is a
	// re-derivation of precision (= accuracy); the equality is preserved
	// here on purpose, it is not a bug to fix.
	MetricRecallByRaganato  = "recall_by_raganato"
	MetricF1ScoreByRaganato = "f1_score_by_raganato"

	// Maru sense-level macro scores over pooled instances.
	MetricMacroPrecisionByMaru = "macro_precision_by_maru"
	MetricMacroRecallByMaru    = "macro_recall_by_maru"
	MetricMacroF1ScoreByMaru   = "macro_f1_score_by_maru"
)

// GroupNode is either a leaf holding metric records or a branch of named
// sub-groups; the two are mutually exclusive.
type GroupNode struct {
	Records  []Record
	Children map[string]*GroupNode
}

// Leaf reports whether the node holds records directly.
func (n *GroupNode) Leaf() bool { return n.Children == nil }

// Metrics maps metric names to averaged values.
type Metrics map[string]float64

// SummaryNode mirrors the group tree after averaging.
type SummaryNode struct {
	Metrics  Metrics
	Children map[string]*SummaryNode
}

// AggregatorOptions configures an evaluation pass.
type AggregatorOptions struct {
	// Breakdowns lists attribute-name sets to group records by, in addition
	// to the reserved ALL group. Nil applies the defaults: by corpus, by
	// original part-of-speech, and their combination.
	Breakdowns [][]string

	// Category is the label space (lemma or lexname); default lemma.
	Category Category

	// Graph resolves lemma keys to lexnames; required for CategoryLexname.
	Graph sense.Graph
}

// Aggregator buffers per-instance metric records into breakdown groups and
// computes averaged summaries at finalization. It is not safe for concurrent
// use; run one aggregator per worker and merge (see EvaluateParallel).
type Aggregator struct {
	breakdowns [][]string
	category   Category
	graph      sense.Graph
	groups     map[string]*GroupNode
}

// NewAggregator validates the configuration and returns an empty aggregator.
func NewAggregator(opts AggregatorOptions) (*Aggregator, error) {
	category := opts.Category
	if category == "" {
		category = CategoryLemma
	}
	switch category {
	case CategoryLemma:
	case CategoryLexname:
		if opts.Graph == nil {
			return nil, fmt.Errorf("evaluation category %q requires a sense graph", category)
		}
	default:
		return nil, fmt.Errorf("invalid evaluation category: %q", category)
	}

	breakdowns := opts.Breakdowns
	if breakdowns == nil {
		breakdowns = [][]string{{"corpus_id"}, {"pos_orig"}, {"corpus_id", "pos_orig"}}
	}
	canonical := make([][]string, len(breakdowns))
	for i, names := range breakdowns {
		if len(names) == 0 {
			return nil, fmt.Errorf("breakdown %d: at least one attribute name is required", i)
		}
		cp := append([]string(nil), names...)
		sort.Strings(cp)
		canonical[i] = cp
	}

	return &Aggregator{
		breakdowns: canonical,
		category:   category,
		graph:      opts.Graph,
		groups:     map[string]*GroupNode{AllGroup: {Records: []Record{}}},
	}, nil
}

// Record evaluates one instance and appends its metric record to the ALL
// group and to every configured breakdown group. attrs must contain a value
// for every attribute named by the configured breakdowns.
func (a *Aggregator) Record(instanceID string, groundTruths, predictions []string, attrs map[string]string) error {
	scoredGT, scoredPred := groundTruths, predictions
	if a.category == CategoryLexname {
		var err error
		if scoredGT, err = a.toLexnames(groundTruths); err != nil {
			return err
		}
		if scoredPred, err = a.toLexnames(predictions); err != nil {
			return err
		}
	}

	rec := ComputeRecord(instanceID, scoredGT, scoredPred)
	// The pooled side-channel keeps the raw labels regardless of category.
	rec.Predictions = map[string][]string{instanceID: append([]string(nil), predictions...)}
	rec.GroundTruths = map[string][]string{instanceID: append([]string(nil), groundTruths...)}

	all := a.groups[AllGroup]
	all.Records = append(all.Records, rec)

	for _, names := range a.breakdowns {
		values := make([]string, len(names))
		for i, name := range names {
			v, ok := attrs[name]
			if !ok {
				return fmt.Errorf("instance %q: missing breakdown attribute %q", instanceID, name)
			}
			values[i] = v
		}
		grouper := strings.Join(names, "|")
		value := strings.Join(values, "|")

		branch, ok := a.groups[grouper]
		if !ok {
			branch = &GroupNode{Children: map[string]*GroupNode{}}
			a.groups[grouper] = branch
		}
		leaf, ok := branch.Children[value]
		if !ok {
			leaf = &GroupNode{Records: []Record{}}
			branch.Children[value] = leaf
		}
		leaf.Records = append(leaf.Records, rec)
	}
	return nil
}

func (a *Aggregator) toLexnames(lemmaKeys []string) ([]string, error) {
	out := make([]string, len(lemmaKeys))
	for i, key := range lemmaKeys {
		id, err := a.graph.SynsetOf(key)
		if err != nil {
			return nil, err
		}
		name, err := a.graph.Lexname(id)
		if err != nil {
			return nil, err
		}
		out[i] = name
	}
	return out, nil
}

// Finalize averages every group and returns the summary tree. It does not
// mutate the aggregator: calling it again without further Record calls
// yields identical output.
func (a *Aggregator) Finalize() map[string]*SummaryNode {
	out := make(map[string]*SummaryNode, len(a.groups))
	for key, node := range a.groups {
		out[key] = averageGroup(node)
	}
	return out
}

// averageGroup descends the group tree: a branch recurses, a leaf is
// averaged directly.
func averageGroup(node *GroupNode) *SummaryNode {
	if node.Leaf() {
		return &SummaryNode{Metrics: averageRecords(node.Records)}
	}
	children := make(map[string]*SummaryNode, len(node.Children))
	for key, child := range node.Children {
		children[key] = averageGroup(child)
	}
	return &SummaryNode{Children: children}
}

func averageRecords(records []Record) Metrics {
	m := Metrics{
		MetricPrecision: 0,
		MetricRecall:    0,
		MetricF1Score:   0,
		MetricAccuracy:  0,
	}
	if n := len(records); n > 0 {
		for _, rec := range records {
			m[MetricPrecision] += rec.Precision
			m[MetricRecall] += rec.Recall
			m[MetricF1Score] += rec.F1Score
			m[MetricAccuracy] += rec.Accuracy
		}
		for _, name := range []string{MetricPrecision, MetricRecall, MetricF1Score, MetricAccuracy} {
			m[name] /= float64(n)
		}
	}

	m[MetricRecallByRaganato] = m[MetricPrecision]
	m[MetricF1ScoreByRaganato] = F1(m[MetricPrecision], m[MetricRecallByRaganato])

	pooledPred := map[string][]string{}
	pooledGT := map[string][]string{}
	for _, rec := range records {
		for id, labels := range rec.Predictions {
			pooledPred[id] = labels
		}
		for id, labels := range rec.GroundTruths {
			pooledGT[id] = labels
		}
	}
	p, r, f1 := macroBySense(pooledGT, pooledPred)
	m[MetricMacroPrecisionByMaru] = p
	m[MetricMacroRecallByMaru] = r
	m[MetricMacroF1ScoreByMaru] = f1

	return m
}
