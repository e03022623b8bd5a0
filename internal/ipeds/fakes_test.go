package ipeds

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapingest/internal/mapping"
	"github.com/leapstack-labs/leapingest/internal/store"
	"github.com/leapstack-labs/leapingest/internal/testutil"
)

type programKey struct {
	institution int64
	cip, level  string
}

// memoryStore implements the institution and program gateways in memory.
type memoryStore struct {
	institutions map[string]*store.Entity
	programs     map[programKey]*store.Program
	nextID       int64
	resets       int
	failUpdate   string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		institutions: map[string]*store.Entity{},
		programs:     map[programKey]*store.Program{},
	}
}

func (m *memoryStore) FindOrCreate(_ context.Context, id string) (*store.Entity, error) {
	if e, ok := m.institutions[id]; ok {
		return e, nil
	}
	m.nextID++
	e := &store.Entity{ID: m.nextID, ExternalID: id, Attributes: mapping.AttributeSet{}}
	m.institutions[id] = e
	return e, nil
}

func (m *memoryStore) FindByExternalID(_ context.Context, id string) (*store.Entity, error) {
	return m.institutions[id], nil
}

func (m *memoryStore) Update(_ context.Context, e *store.Entity, attrs mapping.AttributeSet) error {
	if e.ExternalID == m.failUpdate {
		return errors.New("database is locked")
	}
	maps.Copy(e.Attributes, attrs)
	return nil
}

func (m *memoryStore) DeleteAllExcept(_ context.Context, keep map[string]struct{}) (int, error) {
	n := 0
	for id := range m.institutions {
		if _, ok := keep[id]; !ok {
			delete(m.institutions, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) DeleteAllPrograms(context.Context) (int, error) {
	m.resets++
	n := len(m.programs)
	m.programs = map[programKey]*store.Program{}
	return n, nil
}

func (m *memoryStore) FindOrCreateProgram(_ context.Context, institutionID int64, cip, level string) (*store.Program, error) {
	k := programKey{institutionID, cip, level}
	if p, ok := m.programs[k]; ok {
		return p, nil
	}
	m.nextID++
	p := &store.Program{ID: m.nextID, InstitutionID: institutionID, CIPCode: cip, Level: level}
	m.programs[k] = p
	return p, nil
}

func (m *memoryStore) SaveProgram(context.Context, *store.Program) error {
	return nil
}

func (m *memoryStore) attrs(id string) mapping.AttributeSet {
	if e, ok := m.institutions[id]; ok {
		return e.Attributes
	}
	return nil
}

// dirFetcher serves CSVs written to a temporary directory.
type dirFetcher struct {
	dir     string
	fetched []string
	err     error
}

func newDirFetcher(t *testing.T, files map[string]string) *dirFetcher {
	t.Helper()
	lines := make(map[string][]string, len(files))
	for name, content := range files {
		lines[strings.ToLower(name)+".csv"] = []string{strings.TrimSuffix(content, "\n")}
	}
	return &dirFetcher{dir: testutil.WriteFiles(t, lines)}
}

func (f *dirFetcher) FetchAll(_ context.Context, names []string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.fetched = append(f.fetched, names...)
	out := make(map[string]string, len(names))
	for _, n := range names {
		out[n] = filepath.Join(f.dir, strings.ToLower(n)+".csv")
	}
	return out, nil
}
