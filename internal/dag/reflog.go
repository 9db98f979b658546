package dag

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	gocid "github.com/ipfs/go-cid"
)

// ReflogEntry records one move of HEAD or a branch.
type ReflogEntry struct {
	Ref       string    `json:"ref"`           // "HEAD" or the branch name
	Old       string    `json:"old,omitempty"` // base32 CID, empty for a new ref
	New       string    `json:"new"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Reflog is an append-only JSONL journal of reference moves.
type Reflog struct {
	path string
}

// NewReflog creates a Reflog backed by the journal at path.
func NewReflog(path string) *Reflog {
	return &Reflog{path: path}
}

// Append records a move from one commit to another. from may be CidUndef.
func (l *Reflog) Append(ref string, from, to gocid.Cid, message string) error {
	entry := ReflogEntry{
		Ref:       ref,
		New:       CIDToFilename(to),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if from.Defined() {
		entry.Old = CIDToFilename(from)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal reflog entry: %w", err)
	}
	if err := SafeAppend(l.path, append(data, '\n')); err != nil {
		return storageFault("write reflog", err)
	}
	return nil
}

// Entries returns up to n entries, newest first. n <= 0 returns all.
func (l *Reflog) Entries(n int) ([]ReflogEntry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil // no journal yet
	}
	if err != nil {
		return nil, storageFault("open reflog", err)
	}
	defer f.Close()

	var all []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry ReflogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		all = append(all, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, storageFault("read reflog", err)
	}

	out := make([]ReflogEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}
