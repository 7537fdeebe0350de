// Package csi loads the Coarse Sense Inventory: an external clustering of
// WordNet senses into coarse semantic labels, distributed as a flat
// tab-separated file (wn_synset2csi.txt).
package csi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrDuplicateSense is returned when the inventory file assigns labels to the
// same sense twice. The file is a curated artifact; a duplicate means it is
// corrupt, so loading fails outright.
var ErrDuplicateSense = errors.New("duplicate sense id in coarse sense inventory")

// OffsetResolver translates a raw synset offset from the inventory file
// (e.g. "wn:00002684n") into the canonical synset identifier used by the
// rest of the toolkit. A nil resolver keeps offsets verbatim.
type OffsetResolver func(offset string) (string, error)

// Inventory maps synsets to their coarse sense labels and back.
// It is read-only after Load and safe for concurrent use.
type Inventory struct {
	labelsBySense map[string][]string
	sensesByLabel map[string][]string
}

// Labels returns the coarse labels assigned to a synset, or nil when the
// inventory has no entry for it.
func (inv *Inventory) Labels(synsetID string) []string {
	return inv.labelsBySense[synsetID]
}

// Senses returns every synset carrying the given coarse label.
func (inv *Inventory) Senses(label string) []string {
	return inv.sensesByLabel[label]
}

// Expand returns the set of synsets sharing at least one coarse label with
// synsetID, sorted. A synset with no inventory entry expands to nothing.
func (inv *Inventory) Expand(synsetID string) []string {
	labels := inv.labelsBySense[synsetID]
	if len(labels) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, label := range labels {
		for _, id := range inv.sensesByLabel[label] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Len reports the number of senses with at least one label.
func (inv *Inventory) Len() int { return len(inv.labelsBySense) }

// Load parses an inventory file: one sense per line, tab-separated, first
// column the synset offset, remaining columns its coarse labels.
func Load(r io.Reader, resolve OffsetResolver) (*Inventory, error) {
	inv := &Inventory{
		labelsBySense: map[string][]string{},
		sensesByLabel: map[string][]string{},
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			return nil, fmt.Errorf("csi line %d: expected <offset>TAB<label>..., got %q", lineNo, line)
		}

		id := strings.TrimSpace(cols[0])
		if resolve != nil {
			resolved, err := resolve(id)
			if err != nil {
				return nil, fmt.Errorf("csi line %d: resolve offset %q: %w", lineNo, id, err)
			}
			id = resolved
		}
		if _, ok := inv.labelsBySense[id]; ok {
			return nil, fmt.Errorf("csi line %d: %w: %q", lineNo, ErrDuplicateSense, id)
		}

		var labels []string
		for _, label := range cols[1:] {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			labels = append(labels, label)
			inv.sensesByLabel[label] = append(inv.sensesByLabel[label], id)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("csi line %d: sense %q has no labels", lineNo, id)
		}
		inv.labelsBySense[id] = labels
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

// LoadFile reads an inventory file from disk.
func LoadFile(path string, resolve OffsetResolver) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	inv, err := Load(f, resolve)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}
