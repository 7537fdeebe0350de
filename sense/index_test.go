package sense

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	x := NewIndex()
	add := func(s Synset) {
		t.Helper()
		if err := x.Add(s); err != nil {
			t.Fatalf("Add(%s): %v", s.ID, err)
		}
	}
	add(Synset{
		ID:        "02084071-n",
		Lexname:   "noun.animal",
		LemmaKeys: []string{"dog%1:05:00::", "domestic_dog%1:05:00::"},
		Gloss:     "a member of the genus Canis",
		Related: map[string][]string{
			RelationHypernym: {"02083346-n"},
			RelationHyponym:  {"01317541-n", "02083346-n"},
		},
	})
	add(Synset{
		ID:        "02083346-n",
		Lexname:   "noun.animal",
		LemmaKeys: []string{"canine%1:05:00::"},
	})
	add(Synset{
		ID:        "01317541-n",
		Lexname:   "noun.animal",
		LemmaKeys: []string{"domestic_animal%1:05:00::"},
	})
	return x
}

func TestIndexSynsetOf(t *testing.T) {
	x := testIndex(t)
	id, err := x.SynsetOf("dog%1:05:00::")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "02084071-n" {
		t.Fatalf("synset = %q", id)
	}
	if _, err := x.SynsetOf("cat%1:05:00::"); !errors.Is(err, ErrUnknownLemmaKey) {
		t.Fatalf("expected ErrUnknownLemmaKey, got %v", err)
	}
}

func TestIndexAdd_Duplicates(t *testing.T) {
	x := testIndex(t)
	if err := x.Add(Synset{ID: "02084071-n", LemmaKeys: []string{"x%1:05:00::"}}); err == nil {
		t.Fatalf("expected duplicate synset id error")
	}
	if err := x.Add(Synset{ID: "99999999-n", LemmaKeys: []string{"dog%1:05:00::"}}); err == nil {
		t.Fatalf("expected duplicate lemma key error")
	}
}

func TestIndexRelated(t *testing.T) {
	x := testIndex(t)

	hyper, err := x.Related("02084071-n", RelationHypernym)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(hyper, []string{"02083346-n"}) {
		t.Fatalf("hypernyms = %v", hyper)
	}

	// RelationAll unions every edge, deduplicated and sorted.
	all, err := x.Related("02084071-n", RelationAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(all, []string{"01317541-n", "02083346-n"}) {
		t.Fatalf("all relations = %v", all)
	}

	if _, err := x.Related("nope", RelationAll); !errors.Is(err, ErrUnknownSynset) {
		t.Fatalf("expected ErrUnknownSynset, got %v", err)
	}
}

func TestIndexLexname(t *testing.T) {
	x := testIndex(t)
	name, err := x.Lexname("02084071-n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "noun.animal" {
		t.Fatalf("lexname = %q", name)
	}
	ids, err := x.LexnameSynsets("noun.animal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("lexname synsets = %v", ids)
	}
}

func TestLoad(t *testing.T) {
	dump := strings.Join([]string{
		"# comment",
		"",
		"02084071-n\tnoun.animal\tdog%1:05:00::,domestic_dog%1:05:00::\ta member of the genus Canis\thypernym=02083346-n",
		"02083346-n\tnoun.animal\tcanine%1:05:00::\tany of various fissiped mammals",
	}, "\n")

	x, err := Load(strings.NewReader(dump))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := x.SynsetOf("domestic_dog%1:05:00::")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "02084071-n" {
		t.Fatalf("synset = %q", id)
	}

	gloss, err := x.Gloss("02084071-n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gloss != "a member of the genus Canis" {
		t.Fatalf("gloss = %q", gloss)
	}

	related, err := x.Related("02084071-n", RelationHypernym)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(related, []string{"02083346-n"}) {
		t.Fatalf("related = %v", related)
	}
}

func TestLoad_Malformed(t *testing.T) {
	for _, dump := range []string{
		"only\tthree\tcolumns",
		"id\tlex\t\tgloss",              // no lemma keys
		"id\tlex\tk%1:05:00::\tg\tbad", // relation without '='
	} {
		if _, err := Load(strings.NewReader(dump)); err == nil {
			t.Fatalf("expected error for %q", dump)
		}
	}
}

func TestSynsetIDs_Sorted(t *testing.T) {
	x := testIndex(t)
	ids := x.SynsetIDs()
	want := []string{"01317541-n", "02083346-n", "02084071-n"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}
