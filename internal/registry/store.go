package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/miradorstack/habit-ml/internal/utils"
)

// Store persists named model artifacts.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete removes name. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, name string) error
}

// Sizer is implemented by stores that can report an artifact's size without reading it.
type Sizer interface {
	Size(ctx context.Context, name string) (int64, error)
}

// ArtifactSize reports the stored size of name, reading the artifact when store cannot
// report sizes directly.
func ArtifactSize(ctx context.Context, store Store, name string) (int64, error) {
	if s, ok := store.(Sizer); ok {
		return s.Size(ctx, name)
	}
	data, err := store.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func notFound(op, name string) error {
	return utils.NewAppError(op, fmt.Sprintf("artifact %q not found", name), utils.ErrArtifactNotFound)
}

func checkName(op, name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return utils.InputError(op, "invalid artifact name %q", name)
	}
	return nil
}

// MemoryStore keeps artifacts in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	if err := checkName("registry.MemoryStore.Put", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the stored bytes.
func (m *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[name]
	if !ok {
		return nil, notFound("registry.MemoryStore.Get", name)
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether name has been stored.
func (m *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[name]
	return ok, nil
}

// Size implements Sizer.
func (m *MemoryStore) Size(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[name]
	if !ok {
		return 0, notFound("registry.MemoryStore.Size", name)
	}
	return int64(len(data)), nil
}

// Delete removes an artifact. Missing names are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}
