package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryVault is an in-memory implementation of the Vault interface,
// useful for testing. Safe for concurrent use.
type MemoryVault struct {
	name     string
	archives map[string][]byte
	mu       sync.RWMutex
}

var _ Vault = (*MemoryVault)(nil)

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		archives: make(map[string][]byte),
	}
}

// Put stores an archive under name. An already-stored name is skipped.
func (v *MemoryVault) Put(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.archives[name]; ok {
		return nil
	}
	v.archives[name] = data
	return nil
}

// Get retrieves the archive stored under name and writes it to w.
func (v *MemoryVault) Get(name string, w io.Writer) error {
	v.mu.RLock()
	data, ok := v.archives[name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("archive not found: %s", name)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// List returns the names of all stored archives, sorted.
func (v *MemoryVault) List() ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.archives))
	for name := range v.archives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (v *MemoryVault) ValidateSetup() error {
	return nil
}
