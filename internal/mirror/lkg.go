package mirror

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arc-self/svcmesh/internal/contract"
)

// lkgSchema is the wrapped-document schema tag. The reader also accepts a
// bare map (no wrapper) for compatibility with a pre-wrapped LKG file, using
// its mtime as updatedAt.
const lkgSchema = "mirror@v2"

type lkgDoc struct {
	Schema    string                                 `json:"schema"`
	UpdatedAt time.Time                               `json:"updatedAt"`
	Payload   map[string]contract.ServiceConfigRecord `json:"payload"`
}

type lkgStore struct {
	path string
}

// write serializes the snapshot as canonical JSON with an ISO-8601
// updatedAt, writing to "<path>.tmp.<epoch>" then renaming atomically over
// the final path so a concurrent reader never observes a partial file.
func (l *lkgStore) write(snap *Snapshot) error {
	doc := lkgDoc{Schema: lkgSchema, UpdatedAt: snap.FetchedAt.UTC(), Payload: snap.Records}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("lkg: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("lkg: mkdir: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", l.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("lkg: write tmp: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("lkg: rename: %w", err)
	}
	return nil
}

// read loads the LKG document, accepting either the wrapped schema doc or a
// bare slug@version -> record map (using the file's mtime as updatedAt).
func (l *lkgStore) read() (lkgDoc, error) {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return lkgDoc{}, fmt.Errorf("lkg: read: %w", err)
	}

	var wrapped lkgDoc
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Schema == lkgSchema {
		if err := validatePayload(wrapped.Payload); err != nil {
			return lkgDoc{}, err
		}
		return wrapped, nil
	}

	var bare map[string]contract.ServiceConfigRecord
	if err := json.Unmarshal(b, &bare); err != nil {
		return lkgDoc{}, fmt.Errorf("lkg: unmarshal: %w", err)
	}
	if err := validatePayload(bare); err != nil {
		return lkgDoc{}, err
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return lkgDoc{}, fmt.Errorf("lkg: stat: %w", err)
	}
	return lkgDoc{Schema: lkgSchema, UpdatedAt: info.ModTime(), Payload: bare}, nil
}

// validatePayload checks every record against the wire schema and that its
// map key agrees with its own Key(), guarding against a hand-edited or
// corrupted LKG file being silently adopted.
func validatePayload(payload map[string]contract.ServiceConfigRecord) error {
	for k, r := range payload {
		if r.Key() != k {
			return fmt.Errorf("lkg: key %q does not match record key %q", k, r.Key())
		}
		if err := r.Validate(contract.EnvProduction); err != nil {
			return fmt.Errorf("lkg: record %q: %w", k, err)
		}
	}
	return nil
}
