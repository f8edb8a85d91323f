package session

import (
	"reflect"
	"testing"
)

func TestLabel(t *testing.T) {
	s := &Session{Command: "  make \t -j8   test  "}
	if got := Label(s, 0); got != "make -j8 test" {
		t.Errorf("Label = %q", got)
	}

	s = &Session{Command: "a very long command that will not fit"}
	got := Label(s, 10)
	if len([]rune(got)) > 10 {
		t.Errorf("expected label truncated to width 10, got %q", got)
	}
}

func TestDeduplicateLabels(t *testing.T) {
	in := []string{"make test", "echo hi", "make test", "sleep 1", "make test"}
	want := []string{"make test (1)", "echo hi", "make test (2)", "sleep 1", "make test (3)"}
	got := DeduplicateLabels(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestDeduplicateLabelsAllUnique(t *testing.T) {
	in := []string{"a", "b", "c"}
	got := DeduplicateLabels(in)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("unique labels must pass through, got %v", got)
	}
}

func TestDeduplicateLabelsEmpty(t *testing.T) {
	if got := DeduplicateLabels(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
