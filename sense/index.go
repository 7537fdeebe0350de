package sense

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Synset is one entry of an in-memory sense index.
type Synset struct {
	ID        string
	Lexname   string
	LemmaKeys []string
	Gloss     string

	// Related maps a relation name to target synset ids.
	Related map[string][]string
}

// Index is an in-memory Graph implementation. It can be populated
// programmatically (tests, adapters over other lexicons) or loaded from a
// tab-separated dump (see Load).
//
// Index is read-only after construction and safe for concurrent use.
type Index struct {
	synsets    map[string]*Synset
	byLemmaKey map[string]string
	byLexname  map[string][]string
}

var _ Graph = (*Index)(nil)

func NewIndex() *Index {
	return &Index{
		synsets:    map[string]*Synset{},
		byLemmaKey: map[string]string{},
		byLexname:  map[string][]string{},
	}
}

// Add registers a synset. Duplicate synset ids and lemma keys claimed by more
// than one synset are rejected: a lemma-sense key decodes to exactly one
// synset.
func (x *Index) Add(s Synset) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("synset id is required")
	}
	if _, ok := x.synsets[s.ID]; ok {
		return fmt.Errorf("duplicate synset id %q", s.ID)
	}
	for _, key := range s.LemmaKeys {
		if owner, ok := x.byLemmaKey[key]; ok {
			return fmt.Errorf("lemma key %q already bound to synset %q", key, owner)
		}
	}

	cp := s
	cp.LemmaKeys = append([]string(nil), s.LemmaKeys...)
	cp.Related = map[string][]string{}
	for rel, ids := range s.Related {
		cp.Related[rel] = append([]string(nil), ids...)
	}

	x.synsets[s.ID] = &cp
	for _, key := range cp.LemmaKeys {
		x.byLemmaKey[key] = s.ID
	}
	if cp.Lexname != "" {
		x.byLexname[cp.Lexname] = append(x.byLexname[cp.Lexname], s.ID)
	}
	return nil
}

func (x *Index) SynsetOf(lemmaKey string) (string, error) {
	id, ok := x.byLemmaKey[lemmaKey]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLemmaKey, lemmaKey)
	}
	return id, nil
}

func (x *Index) Related(synsetID string, relation string) ([]string, error) {
	s, ok := x.synsets[synsetID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSynset, synsetID)
	}
	if relation == RelationAll {
		seen := map[string]struct{}{}
		var out []string
		for _, ids := range s.Related {
			for _, id := range ids {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		sort.Strings(out)
		return out, nil
	}
	return append([]string(nil), s.Related[relation]...), nil
}

func (x *Index) LemmaKeys(synsetID string) ([]string, error) {
	s, ok := x.synsets[synsetID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSynset, synsetID)
	}
	return append([]string(nil), s.LemmaKeys...), nil
}

func (x *Index) Lexname(synsetID string) (string, error) {
	s, ok := x.synsets[synsetID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSynset, synsetID)
	}
	return s.Lexname, nil
}

func (x *Index) LexnameSynsets(lexname string) ([]string, error) {
	return append([]string(nil), x.byLexname[lexname]...), nil
}

// Gloss returns the dictionary gloss of a synset (empty if the dump carried
// none).
func (x *Index) Gloss(synsetID string) (string, error) {
	s, ok := x.synsets[synsetID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSynset, synsetID)
	}
	return s.Gloss, nil
}

// SynsetIDs returns every synset id in the index, sorted.
func (x *Index) SynsetIDs() []string {
	out := make([]string, 0, len(x.synsets))
	for id := range x.synsets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Load reads a tab-separated sense dump into a fresh Index.
//
// One synset per line:
//
//	<synset_id> TAB <lexname> TAB <lemma_key,...> TAB <gloss> [TAB <relation>=<id,...>]...
//
// Blank lines and lines starting with '#' are skipped.
func Load(r io.Reader) (*Index, error) {
	x := NewIndex()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 4 {
			return nil, fmt.Errorf("sense dump line %d: expected at least 4 columns, got %d", lineNo, len(cols))
		}

		s := Synset{
			ID:      strings.TrimSpace(cols[0]),
			Lexname: strings.TrimSpace(cols[1]),
			Gloss:   strings.TrimSpace(cols[3]),
			Related: map[string][]string{},
		}
		for _, key := range strings.Split(cols[2], ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			s.LemmaKeys = append(s.LemmaKeys, key)
		}
		if len(s.LemmaKeys) == 0 {
			return nil, fmt.Errorf("sense dump line %d: synset %q has no lemma keys", lineNo, s.ID)
		}

		for _, col := range cols[4:] {
			rel, rest, ok := strings.Cut(col, "=")
			rel = strings.TrimSpace(rel)
			if !ok || rel == "" {
				return nil, fmt.Errorf("sense dump line %d: malformed relation column %q", lineNo, col)
			}
			for _, id := range strings.Split(rest, ",") {
				id = strings.TrimSpace(id)
				if id == "" {
					continue
				}
				s.Related[rel] = append(s.Related[rel], id)
			}
		}

		if err := x.Add(s); err != nil {
			return nil, fmt.Errorf("sense dump line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return x, nil
}

// LoadFile reads a sense dump from disk.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return x, nil
}
