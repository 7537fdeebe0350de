package sense

import (
	"errors"
	"fmt"
	"strings"
)

// PartOfSpeech is the single-letter WordNet part-of-speech tag.
type PartOfSpeech string

const (
	Noun               PartOfSpeech = "n"
	Verb               PartOfSpeech = "v"
	Adjective          PartOfSpeech = "a"
	Adverb             PartOfSpeech = "r"
	AdjectiveSatellite PartOfSpeech = "s"
)

// Relation selectors understood by Graph implementations.
//
// RelationAll unions every relation edge stored for a synset; any other
// selector returns only the edges recorded under that name (hypernym,
// hyponym, meronym, ...). Selectors are open-ended: a Graph built from a
// richer dump may carry relation names not listed here.
const (
	RelationAll      = "all-relations"
	RelationHypernym = "hypernym"
	RelationHyponym  = "hyponym"
	RelationMeronym  = "meronym"
	RelationHolonym  = "holonym"
	RelationSimilar  = "similar"
)

var (
	// ErrUnknownLemmaKey is returned when a lemma-sense key does not resolve
	// to any synset in the graph.
	ErrUnknownLemmaKey = errors.New("unknown lemma-sense key")

	// ErrUnknownSynset is returned for lookups against a synset identifier
	// that the graph has never seen.
	ErrUnknownSynset = errors.New("unknown synset id")
)

// Graph is the sense-relation capability consumed by the re-ranker and the
// evaluator. Implementations must behave as pure functions of their inputs;
// callers may memoize results freely.
type Graph interface {
	// SynsetOf resolves a lemma-sense key to its unique synset identifier.
	SynsetOf(lemmaKey string) (string, error)

	// Related returns the synset identifiers reachable from synsetID through
	// the selected relation. The result is a set: no duplicates, order not
	// significant.
	Related(synsetID string, relation string) ([]string, error)

	// LemmaKeys returns the member lemma-sense keys of a synset in their
	// canonical (sense-number) order.
	LemmaKeys(synsetID string) ([]string, error)

	// Lexname returns the lexicographer file name (supersense) of a synset.
	Lexname(synsetID string) (string, error)

	// LexnameSynsets returns every synset assigned to the given lexname.
	LexnameSynsets(lexname string) ([]string, error)
}

// LemmaKey is the decoded form of a WordNet sense key such as
// "run%2:38:00::". Only the fields this toolkit needs are decoded.
type LemmaKey struct {
	Raw   string
	Lemma string
	POS   PartOfSpeech
}

var ssTypeToPOS = map[byte]PartOfSpeech{
	'1': Noun,
	'2': Verb,
	'3': Adjective,
	'4': Adverb,
	'5': AdjectiveSatellite,
}

// ParseLemmaKey decodes the lemma and part-of-speech from a sense key.
// The sense key grammar is lemma%ss_type:lex_filenum:lex_id:head:head_id.
func ParseLemmaKey(key string) (LemmaKey, error) {
	lemma, rest, ok := strings.Cut(key, "%")
	if !ok || lemma == "" {
		return LemmaKey{}, fmt.Errorf("malformed lemma-sense key %q", key)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 5 || len(parts[0]) != 1 {
		return LemmaKey{}, fmt.Errorf("malformed lemma-sense key %q", key)
	}
	pos, ok := ssTypeToPOS[parts[0][0]]
	if !ok {
		return LemmaKey{}, fmt.Errorf("lemma-sense key %q: unknown ss_type %q", key, parts[0])
	}
	return LemmaKey{Raw: key, Lemma: lemma, POS: pos}, nil
}
