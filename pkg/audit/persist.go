package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// WriteJSONL serializes every entry in the log, one JSON object per
// line, fields in the Entry struct's canonical order, to w.
func (l *Log) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range l.Snapshot() {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("audit: failed to encode entry %s: %w", e.EntryID, err)
		}
	}
	return nil
}

// WriteJSONLFile is WriteJSONL to a path, creating/truncating the file.
func (l *Log) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: cannot open %s: %w", path, err)
	}
	defer f.Close()
	return l.WriteJSONL(f)
}

// ReadJSONL reconstructs a Log from a JSONL stream and verifies the
// chain link-by-link as it reads. A chain break is reported immediately
// as a hard AuditIntegrity error rather than deferred to a separate
// Verify call, since a caller reading a log from disk has no other
// chance to catch it before trusting the contents.
func ReadJSONL(subsystem string, r io.Reader) (*Log, error) {
	l := NewLog(subsystem)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var prevHash string
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, guarderr.Wrap(guarderr.KindAuditIntegrity, "malformed audit entry line", err)
		}
		if e.PreviousHash != prevHash {
			return nil, guarderr.New(guarderr.KindAuditIntegrity, "chain link mismatch while reading persisted log")
		}
		want, err := computeHash(e)
		if err != nil {
			return nil, guarderr.Wrap(guarderr.KindAuditIntegrity, "failed to recompute hash while reading persisted log", err)
		}
		if want != e.EntryHash {
			return nil, guarderr.New(guarderr.KindAuditIntegrity, "entry hash mismatch while reading persisted log")
		}
		l.entries = append(l.entries, e)
		prevHash = e.EntryHash
	}
	if err := scanner.Err(); err != nil {
		return nil, guarderr.Wrap(guarderr.KindAuditIntegrity, "failed to read persisted log", err)
	}
	return l, nil
}

// ReadJSONLFile is ReadJSONL from a path.
func ReadJSONLFile(subsystem, path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: cannot open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSONL(subsystem, f)
}
