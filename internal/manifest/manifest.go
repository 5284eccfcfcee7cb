// Package manifest persists the ordered list of structures (segments or
// tables) that make up a store. The list is oldest first, one identifier per
// line, and the file is replaced atomically on every change.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/lindend/dabble/internal/fsutil"
	"golang.org/x/exp/slices"
)

// FileName is the name of the manifest file inside a store directory.
const FileName = "MANIFEST"

type Manifest struct {
	path string
	ids  []string
}

// Open loads the manifest at path. A missing file is an empty manifest.
func Open(path string) (*Manifest, error) {
	m := &Manifest{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			m.ids = append(m.ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// IDs returns a copy of the identifiers, oldest first.
func (m *Manifest) IDs() []string {
	return slices.Clone(m.ids)
}

func (m *Manifest) Len() int {
	return len(m.ids)
}

func (m *Manifest) Contains(id string) bool {
	return slices.Contains(m.ids, id)
}

// Add appends id as the newest entry and persists the manifest.
func (m *Manifest) Add(id string) error {
	ids := append(slices.Clone(m.ids), id)
	return m.Replace(ids)
}

// Replace swaps the whole list and persists it. If persisting fails the
// in-memory list is left unchanged.
func (m *Manifest) Replace(ids []string) error {
	if err := m.dump(ids); err != nil {
		return err
	}
	m.ids = slices.Clone(ids)
	return nil
}

func (m *Manifest) dump(ids []string) error {
	var buf bytes.Buffer
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, "\n") {
			return fmt.Errorf("invalid manifest entry %q", id)
		}
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	if err := fsutil.WriteFileAtomic(m.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

