package dag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeWrite_ReadOnlyObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bafkreiexample")

	if err := SafeWrite(path, []byte("blob bytes"), 0444); err != nil {
		t.Fatalf("SafeWrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "blob bytes" {
		t.Fatalf("got %q, want %q", got, "blob bytes")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0444 {
		t.Fatalf("perm = %o, want 0444", info.Mode().Perm())
	}
}

func TestSafeWrite_ReplacesRef(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main")

	for _, tip := range []string{"first\n", "second\n"} {
		if err := SafeWrite(path, []byte(tip), 0644); err != nil {
			t.Fatalf("SafeWrite %q: %v", tip, err)
		}
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "second\n" {
		t.Fatalf("got %q, want %q", got, "second\n")
	}
	assertOnlyEntries(t, dir, "main")
}

func TestSafeWrite_FailureLeavesTargetAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "HEAD")
	if err := SafeWrite(path, []byte("ref: refs/heads/main\n"), 0644); err != nil {
		t.Fatalf("SafeWrite: %v", err)
	}

	if err := SafeWrite(filepath.Join(dir, "missing", "HEAD"), []byte("x"), 0644); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}

	assertOnlyEntries(t, dir, "HEAD")
	got, _ := os.ReadFile(path)
	if string(got) != "ref: refs/heads/main\n" {
		t.Fatalf("HEAD corrupted: got %q", got)
	}
}

func TestSafeWriteJSON_SortedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index")

	if err := SafeWriteJSON(path, map[string]string{"b.txt": "x", "a.txt": "y"}); err != nil {
		t.Fatalf("SafeWriteJSON: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := `{"a.txt":"y","b.txt":"x"}` + "\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSafeAppend_Journal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "HEAD")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}

	for _, line := range []string{`{"n":1}`, `{"n":2}`} {
		if err := SafeAppend(path, []byte(line+"\n")); err != nil {
			t.Fatalf("SafeAppend %s: %v", line, err)
		}
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := "{\"n\":1}\n{\"n\":2}\n"; string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRemoveStaleTemps(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"HEAD", tempPrefix + "123", tempPrefix + "456"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, tempPrefix+"dir"), 0755); err != nil {
		t.Fatal(err)
	}

	n, err := RemoveStaleTemps(dir)
	if err != nil {
		t.Fatalf("RemoveStaleTemps: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	assertOnlyEntries(t, dir, tempPrefix+"dir", "HEAD")

	n, err = RemoveStaleTemps(filepath.Join(dir, "absent"))
	if err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}
}

func assertOnlyEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("entries = %v, want %v", names, want)
	}
}
