package main

import (
	"slices"
	"testing"
)

func TestSpawnQueries(t *testing.T) {
	code := "x = 1\n  # spawn: first part \n# spawn:\n#spawn: not a marker\n# spawn: second part"
	got := spawnQueries(code)
	want := []string{"first part", "second part"}
	if !slices.Equal(got, want) {
		t.Errorf("spawnQueries = %q, want %q", got, want)
	}
	if qs := spawnQueries("print(1)"); qs != nil {
		t.Errorf("spawnQueries(plain) = %q, want none", qs)
	}
}
