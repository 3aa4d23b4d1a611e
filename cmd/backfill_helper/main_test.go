package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestListExtractsFiltersByPrefixAndExtension(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"surveillance_2024_01.csv",
		"specimens_2024_01.csv",
		"report_2024_01.csv",
		"surveillance_2024_01.txt",
		"notes.md",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}

	got := listExtracts(dir)
	expected := []string{"specimens_2024_01.csv", "surveillance_2024_01.csv"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestNewerThanKeepsOnlyFreshFiles(t *testing.T) {
	dir := t.TempDir()
	cutoff := time.Now().Add(-time.Hour)
	old := "surveillance_2024_01.csv"
	fresh := "surveillance_2024_02.csv"
	for _, name := range []string{old, fresh} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	stale := cutoff.Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, old), stale, stale); err != nil {
		t.Fatal(err)
	}

	pending := newerThan(dir, []string{old, fresh}, cutoff)
	if len(pending) != 1 || pending[0] != fresh {
		t.Fatalf("expected only %s pending, got %v", fresh, pending)
	}
}
