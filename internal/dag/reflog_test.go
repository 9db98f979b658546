package dag

import (
	"os"
	"path/filepath"
	"testing"

	gocid "github.com/ipfs/go-cid"
)

func TestReflog_NewestFirst(t *testing.T) {
	_, cl := newTestRefs(t)
	c1 := writeTestCommit(t, cl, "one")
	c2 := writeTestCommit(t, cl, "two", c1)

	log := NewReflog(filepath.Join(t.TempDir(), "HEAD"))
	if err := log.Append("main", gocid.Undef, c1, "commit (initial): one"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append("main", c1, c2, "commit: two"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := log.Entries(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].New != CIDToFilename(c2) || entries[0].Old != CIDToFilename(c1) {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[1].Old != "" {
		t.Errorf("initial entry old = %q, want empty", entries[1].Old)
	}

	one, _ := log.Entries(1)
	if len(one) != 1 || one[0].Message != "commit: two" {
		t.Errorf("Entries(1) = %+v", one)
	}
}

func TestReflog_MissingAndMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HEAD")
	log := NewReflog(path)

	entries, err := log.Entries(0)
	if err != nil || entries != nil {
		t.Fatalf("missing journal = %v, %v", entries, err)
	}

	os.WriteFile(path, []byte("not json\n{\"ref\":\"main\",\"new\":\"x\",\"message\":\"m\"}\n"), 0644)
	entries, err = log.Entries(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Ref != "main" {
		t.Errorf("entries = %+v", entries)
	}
}
