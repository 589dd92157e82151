package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/codesentinel/codesentinel-go/internal/errors"
)

// Store loads and saves the manifest document. Saves are atomic: the
// document is written to a sibling temp file, fsynced, then renamed over
// the destination.
type Store struct{}

// NewStore creates a manifest store.
func NewStore() *Store { return &Store{} }

// ErrNotFound is returned by Load when no manifest exists at the path.
var ErrNotFound = os.ErrNotExist

// Load reads a manifest from disk.
func (s *Store) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, errors.KindInternal, "read manifest")
	}

	// Distinguish malformed JSON from a structurally wrong document.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.KindCorruptManifest, path)
	}
	for _, key := range []string{"repository", "files"} {
		if _, ok := raw[key]; !ok {
			return nil, errors.Newf(errors.KindSchemaMismatch, "%s: missing %q", path, key)
		}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.KindCorruptManifest, path)
	}
	return &m, nil
}

// Save atomically writes the manifest to path, creating parent directories
// as needed.
func (s *Store) Save(path string, m *Manifest) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.KindInternal, "create output directory")
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "encode manifest")
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "create temp manifest")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.KindInternal, "write temp manifest")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.KindInternal, "sync temp manifest")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "close temp manifest")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, errors.KindInternal, "rename manifest")
	}
	return nil
}

// Merge folds per-file updates into m, keyed by path. Entry order is
// preserved; unknown paths are appended at the end. Only the fields set in
// an update are overwritten, so a phase never blanks fields owned by
// another phase. Entries for paths absent from updates are retained
// untouched (orphan-tolerant).
func Merge(m *Manifest, updates []FileEntry) {
	index := make(map[string]int, len(m.Files))
	for i := range m.Files {
		index[m.Files[i].Path] = i
	}

	for _, u := range updates {
		i, ok := index[u.Path]
		if !ok {
			m.Files = append(m.Files, u)
			index[u.Path] = len(m.Files) - 1
			continue
		}
		dst := &m.Files[i]
		if u.BlobID != "" {
			dst.BlobID = u.BlobID
		}
		if u.Size > 0 {
			dst.Size = u.Size
		}
		if u.Extension != "" {
			dst.Extension = u.Extension
		}
		if u.Purpose != "" {
			dst.Purpose = u.Purpose
		}
		if u.Category != "" {
			dst.Category = u.Category
		}
		if u.Confidence != nil {
			dst.Confidence = u.Confidence
		}
		if u.SecurityRelevance != "" {
			dst.SecurityRelevance = u.SecurityRelevance
		}
		if u.Reasoning != "" {
			dst.Reasoning = u.Reasoning
		}
		if u.Provider != "" {
			dst.Provider = u.Provider
		}
		if u.Model != "" {
			dst.Model = u.Model
		}
		if u.TokenStats != nil {
			dst.TokenStats = u.TokenStats
		}
		if u.Vulnerabilities != nil {
			dst.Vulnerabilities = u.Vulnerabilities
		}
		if u.RiskAssessment != nil {
			dst.RiskAssessment = u.RiskAssessment
		}
	}
}
