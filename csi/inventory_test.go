package csi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	src := strings.Join([]string{
		"wn:02084071n\tANIMAL",
		"wn:02083346n\tANIMAL\tBIOLOGY",
		"wn:03001627n\tARTIFACT",
	}, "\n")

	inv, err := Load(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Len() != 3 {
		t.Fatalf("len = %d, want 3", inv.Len())
	}
	if got := inv.Labels("wn:02083346n"); !reflect.DeepEqual(got, []string{"ANIMAL", "BIOLOGY"}) {
		t.Fatalf("labels = %v", got)
	}
	if got := inv.Senses("ANIMAL"); len(got) != 2 {
		t.Fatalf("senses(ANIMAL) = %v", got)
	}
}

func TestLoad_DuplicateSenseFatal(t *testing.T) {
	src := "wn:02084071n\tANIMAL\nwn:02084071n\tBIOLOGY\n"
	if _, err := Load(strings.NewReader(src), nil); !errors.Is(err, ErrDuplicateSense) {
		t.Fatalf("expected ErrDuplicateSense, got %v", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(strings.NewReader("wn:02084071n"), nil); err == nil {
		t.Fatalf("expected error for missing label column")
	}
	if _, err := Load(strings.NewReader("wn:02084071n\t \t "), nil); err == nil {
		t.Fatalf("expected error for blank labels")
	}
}

func TestLoad_Resolver(t *testing.T) {
	resolve := func(offset string) (string, error) {
		if !strings.HasPrefix(offset, "wn:") {
			return "", fmt.Errorf("bad offset %q", offset)
		}
		return strings.TrimPrefix(offset, "wn:"), nil
	}
	inv, err := Load(strings.NewReader("wn:02084071n\tANIMAL"), resolve)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inv.Labels("02084071n"); !reflect.DeepEqual(got, []string{"ANIMAL"}) {
		t.Fatalf("labels = %v", got)
	}
	if _, err := Load(strings.NewReader("bogus\tANIMAL"), resolve); err == nil {
		t.Fatalf("expected resolver error")
	}
}

func TestExpand(t *testing.T) {
	src := strings.Join([]string{
		"s2\tANIMAL",
		"s1\tANIMAL\tBIOLOGY",
		"s3\tBIOLOGY",
		"s4\tARTIFACT",
	}, "\n")
	inv, err := Load(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// s1 shares ANIMAL with s2 and BIOLOGY with s3; the expansion includes
	// itself and comes back sorted.
	if got := inv.Expand("s1"); !reflect.DeepEqual(got, []string{"s1", "s2", "s3"}) {
		t.Fatalf("expand(s1) = %v", got)
	}
	if got := inv.Expand("s4"); !reflect.DeepEqual(got, []string{"s4"}) {
		t.Fatalf("expand(s4) = %v", got)
	}
	if got := inv.Expand("unknown"); got != nil {
		t.Fatalf("expand(unknown) = %v, want nil", got)
	}
}
