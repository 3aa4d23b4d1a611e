package watch

import (
	"context"
	"testing"

	"vectorinsight/config"
)

type fakeRunner struct {
	calls int
}

func (f *fakeRunner) Enqueue(trigger string) bool {
	f.calls++
	return true
}

func TestIsExtract(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/data/extracts/surveillance_2024_03.csv", true},
		{"/data/extracts/specimens_2024_03.csv", true},
		{"/data/extracts/Surveillance_2024_03.CSV", true},
		{"/data/extracts/notes.txt", false},
		{"/data/extracts/report_2024_03.csv", false},
		{"/data/extracts/surveillance_2024_03.csv.tmp", false},
	}
	for _, tc := range cases {
		if got := isExtract(tc.path); got != tc.want {
			t.Errorf("isExtract(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestStartDisabledDoesNothing(t *testing.T) {
	r := &fakeRunner{}
	w := New(config.Config{EnableWatcher: false}, r)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("disabled watcher returned error: %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("disabled watcher scheduled %d runs", r.calls)
	}
}
