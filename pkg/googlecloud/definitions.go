package googlecloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/locvowork/chartdata/pkg/datatable"
	"google.golang.org/api/iterator"
)

const (
	KindTableDefinition = "TableDefinition"
	DefaultPageSize     = 50
)

// ErrDefinitionNotFound is returned when no definition exists under a name.
var ErrDefinitionNotFound = errors.New("table definition not found")

// TableDefinition is a saved table definition. Source holds the YAML or JSON
// text accepted by datatable.ParseDefinition.
type TableDefinition struct {
	Name        string    `datastore:"name" json:"name"`
	Source      string    `datastore:"source,noindex" json:"source"`
	ColumnCount int       `datastore:"column_count" json:"column_count"`
	RowCount    int       `datastore:"row_count" json:"row_count"`
	CreatedAt   time.Time `datastore:"created_at" json:"created_at"`
	UpdatedAt   time.Time `datastore:"updated_at" json:"updated_at"`
}

// Parse decodes the stored source.
func (d *TableDefinition) Parse() (*datatable.Definition, error) {
	return datatable.ParseDefinition([]byte(d.Source))
}

func definitionKey(name string) *datastore.Key {
	return datastore.NameKey(KindTableDefinition, name, nil)
}

// SaveDefinition creates or replaces the definition under def.Name. The
// original creation time is kept on replace.
func (c *Client) SaveDefinition(ctx context.Context, def *TableDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("table definition name cannot be empty")
	}
	now := time.Now().UTC()
	key := definitionKey(def.Name)

	_, err := c.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing TableDefinition
		switch err := tx.Get(key, &existing); {
		case err == nil:
			def.CreatedAt = existing.CreatedAt
		case errors.Is(err, datastore.ErrNoSuchEntity):
			def.CreatedAt = now
		default:
			return err
		}
		def.UpdatedAt = now
		_, err := tx.Put(key, def)
		return err
	})
	if err != nil {
		return fmt.Errorf("save definition %q: %w", def.Name, err)
	}
	return nil
}

// GetDefinition retrieves a definition by name.
func (c *Client) GetDefinition(ctx context.Context, name string) (*TableDefinition, error) {
	var def TableDefinition
	if err := c.ds.Get(ctx, definitionKey(name), &def); err != nil {
		return nil, translateErr(name, err)
	}
	def.Name = name
	return &def, nil
}

// DefinitionPage is one page of ListDefinitions.
type DefinitionPage struct {
	Definitions []TableDefinition `json:"definitions"`
	NextCursor  string            `json:"next_cursor,omitempty"`
}

// ListDefinitions returns up to pageSize definitions ordered by name, starting
// at cursor. NextCursor is empty on the last page.
func (c *Client) ListDefinitions(ctx context.Context, pageSize int, cursor string) (*DefinitionPage, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	query := datastore.NewQuery(KindTableDefinition).Order("name").Limit(pageSize + 1)
	if cursor != "" {
		start, err := datastore.DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = query.Start(start)
	}

	page := &DefinitionPage{}
	it := c.ds.Run(ctx, query)
	for {
		if len(page.Definitions) == pageSize {
			next, err := it.Cursor()
			if err != nil {
				return nil, err
			}
			// peek for one more entity before handing out a cursor
			var extra TableDefinition
			if _, err := it.Next(&extra); err == nil {
				page.NextCursor = next.String()
			} else if err != iterator.Done {
				return nil, fmt.Errorf("list definitions: %w", err)
			}
			return page, nil
		}

		var def TableDefinition
		key, err := it.Next(&def)
		if err == iterator.Done {
			return page, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list definitions: %w", err)
		}
		def.Name = key.Name
		page.Definitions = append(page.Definitions, def)
	}
}

// GetDefinitions fetches several definitions in one round trip, in the order
// of names.
func (c *Client) GetDefinitions(ctx context.Context, names []string) ([]TableDefinition, error) {
	keys := make([]*datastore.Key, len(names))
	for i, name := range names {
		keys[i] = definitionKey(name)
	}

	defs := make([]TableDefinition, len(names))
	if err := c.ds.GetMulti(ctx, keys, defs); err != nil {
		var multi datastore.MultiError
		if errors.As(err, &multi) {
			for i, e := range multi {
				if e != nil {
					return nil, translateErr(names[i], e)
				}
			}
		}
		return nil, fmt.Errorf("get definitions: %w", err)
	}
	for i, name := range names {
		defs[i].Name = name
	}
	return defs, nil
}

// DeleteDefinition removes a definition. Deleting a missing name reports
// ErrDefinitionNotFound.
func (c *Client) DeleteDefinition(ctx context.Context, name string) error {
	_, err := c.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing TableDefinition
		if err := tx.Get(definitionKey(name), &existing); err != nil {
			return err
		}
		return tx.Delete(definitionKey(name))
	})
	return translateErr(name, err)
}

func translateErr(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
	}
	return fmt.Errorf("definition %q: %w", name, err)
}
