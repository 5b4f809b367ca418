package util

import (
	"slices"
	"testing"
)

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"c": 3, "a": 1, "b": 2}
	got := SortedKeys(m)
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("SortedKeys() = %v, want %v", got, want)
	}
}

func TestSortedKeysEmpty(t *testing.T) {
	if got := SortedKeys(map[int]string{}); len(got) != 0 {
		t.Errorf("SortedKeys(empty) = %v, want empty", got)
	}
}
