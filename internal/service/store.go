package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/locvowork/chartdata/pkg/googlecloud"
)

// DefinitionStore persists named table definitions. *googlecloud.Client
// satisfies it; DirStore keeps them on the local filesystem.
type DefinitionStore interface {
	SaveDefinition(ctx context.Context, def *googlecloud.TableDefinition) error
	GetDefinition(ctx context.Context, name string) (*googlecloud.TableDefinition, error)
	ListDefinitions(ctx context.Context, pageSize int, cursor string) (*googlecloud.DefinitionPage, error)
	DeleteDefinition(ctx context.Context, name string) error
}

var definitionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidDefinitionName reports whether name can be used as a definition key.
func ValidDefinitionName(name string) bool {
	return definitionName.MatchString(name) && !strings.Contains(name, "..")
}

const (
	definitionExt = ".yaml"
	createdExt    = ".created"
)

// DirStore stores each definition as <name>.yaml in a directory, with its
// creation time in <name>.created. A definition without the sidecar reports
// its file modification time as CreatedAt. The list cursor is the last name
// of the previous page.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create definitions dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) path(name string) string {
	return filepath.Join(s.dir, name+definitionExt)
}

func (s *DirStore) createdPath(name string) string {
	return filepath.Join(s.dir, name+createdExt)
}

// createdAt reads the sidecar. ok is false when there is none.
func (s *DirStore) createdAt(name string) (created time.Time, ok bool, err error) {
	data, err := os.ReadFile(s.createdPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("definition %q: %w", name, err)
	}
	created, err = time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("definition %q: created time: %w", name, err)
	}
	return created.UTC(), true, nil
}

func (s *DirStore) SaveDefinition(_ context.Context, def *googlecloud.TableDefinition) error {
	if !ValidDefinitionName(def.Name) {
		return fmt.Errorf("invalid definition name %q", def.Name)
	}
	now := time.Now().UTC()

	created, ok, err := s.createdAt(def.Name)
	if err != nil {
		return err
	}
	if !ok {
		created = now
		if info, err := os.Stat(s.path(def.Name)); err == nil {
			created = info.ModTime().UTC()
		}
		stamp := created.Format(time.RFC3339Nano) + "\n"
		if err := os.WriteFile(s.createdPath(def.Name), []byte(stamp), 0o644); err != nil {
			return fmt.Errorf("save definition %q: %w", def.Name, err)
		}
	}

	if err := os.WriteFile(s.path(def.Name), []byte(def.Source), 0o644); err != nil {
		return fmt.Errorf("save definition %q: %w", def.Name, err)
	}
	def.CreatedAt = created
	def.UpdatedAt = now
	return nil
}

func (s *DirStore) GetDefinition(_ context.Context, name string) (*googlecloud.TableDefinition, error) {
	if !ValidDefinitionName(name) {
		return nil, fmt.Errorf("%w: %s", googlecloud.ErrDefinitionNotFound, name)
	}
	return s.read(name)
}

func (s *DirStore) read(name string) (*googlecloud.TableDefinition, error) {
	p := s.path(name)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", googlecloud.ErrDefinitionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("definition %q: %w", name, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("definition %q: %w", name, err)
	}

	created, ok, err := s.createdAt(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		created = info.ModTime().UTC()
	}

	def := &googlecloud.TableDefinition{
		Name:      name,
		Source:    string(data),
		CreatedAt: created,
		UpdatedAt: info.ModTime().UTC(),
	}
	if parsed, err := def.Parse(); err == nil {
		def.ColumnCount = len(parsed.Columns)
		def.RowCount = len(parsed.Rows)
	}
	return def, nil
}

func (s *DirStore) ListDefinitions(_ context.Context, pageSize int, cursor string) (*googlecloud.DefinitionPage, error) {
	if pageSize <= 0 {
		pageSize = googlecloud.DefaultPageSize
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), definitionExt)
		if e.IsDir() || name == e.Name() || name <= cursor {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	page := &googlecloud.DefinitionPage{}
	if len(names) > pageSize {
		names = names[:pageSize]
		page.NextCursor = names[pageSize-1]
	}
	for _, name := range names {
		def, err := s.read(name)
		if err != nil {
			return nil, err
		}
		page.Definitions = append(page.Definitions, *def)
	}
	return page, nil
}

func (s *DirStore) DeleteDefinition(_ context.Context, name string) error {
	if !ValidDefinitionName(name) {
		return fmt.Errorf("%w: %s", googlecloud.ErrDefinitionNotFound, name)
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", googlecloud.ErrDefinitionNotFound, name)
	}
	if err != nil {
		return err
	}
	if err := os.Remove(s.createdPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
