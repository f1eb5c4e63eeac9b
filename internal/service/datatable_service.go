package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/locvowork/chartdata/internal/logger"
	"github.com/locvowork/chartdata/pkg/dataflow"
	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/locvowork/chartdata/pkg/googlecloud"
	"github.com/locvowork/chartdata/pkg/tablesource"
	"github.com/olivere/elastic/v7"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned for unknown definitions and queries.
	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable is returned when the backing source is not configured.
	ErrSourceUnavailable = errors.New("source not configured")

	// ErrInvalidRequest is returned for malformed names and empty inputs.
	ErrInvalidRequest = errors.New("invalid request")
)

// maxQueryBackoff caps the wait between retries of a named query.
const maxQueryBackoff = 5 * time.Second

type DataTableService interface {
	Render(ctx context.Context, source []byte) (*datatable.DataTable, error)

	SaveDefinition(ctx context.Context, name string, source []byte) (*googlecloud.TableDefinition, error)
	GetDefinition(ctx context.Context, name string) (*googlecloud.TableDefinition, error)
	RenderDefinition(ctx context.Context, name string) (*datatable.DataTable, error)
	ListDefinitions(ctx context.Context, pageSize int, cursor string) (*googlecloud.DefinitionPage, error)
	DeleteDefinition(ctx context.Context, name string) error

	QueryNames() []string
	RunQuery(ctx context.Context, name string, args []interface{}) (*datatable.DataTable, error)
	Batch(ctx context.Context, req BatchRequest) (*BatchResult, error)

	Histogram(ctx context.Context, req tablesource.HistogramRequest) (*datatable.DataTable, error)
	FromArrow(ctx context.Context, r io.Reader) (*datatable.DataTable, error)
}

// Deps wires the service to its sources. Nil sources disable the
// operations that need them.
type Deps struct {
	DB       tablesource.Querier
	Store    DefinitionStore
	Elastic  *elastic.Client
	Queries  map[string]tablesource.Query
	Registry *datatable.FormatRegistry

	Location       *time.Location
	DateTimeFormat string

	Workers    int
	MaxRetries int
	Backoff    time.Duration
}

// BatchRequest names the saved definitions and queries to render together.
type BatchRequest struct {
	Definitions []string
	Queries     []string
}

type BatchResult struct {
	Definitions map[string]*datatable.DataTable `json:"definitions"`
	Queries     map[string]*datatable.DataTable `json:"queries"`
}

type dataTableService struct {
	deps Deps
}

func NewDataTableService(deps Deps) (DataTableService, error) {
	if deps.Registry == nil {
		deps.Registry = datatable.NewFormatRegistry()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.DateTimeFormat != "" {
		if err := datatable.New().SetDateTimeFormat(deps.DateTimeFormat); err != nil {
			return nil, err
		}
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	if deps.Backoff <= 0 {
		deps.Backoff = 100 * time.Millisecond
	}
	return &dataTableService{deps: deps}, nil
}

func (s *dataTableService) tableOptions() []datatable.Option {
	return []datatable.Option{
		datatable.WithLocation(s.deps.Location),
		datatable.WithDateTimeFormat(s.deps.DateTimeFormat),
		datatable.WithLogger(logger.Logger()),
	}
}

func (s *dataTableService) Render(ctx context.Context, source []byte) (*datatable.DataTable, error) {
	def, err := datatable.ParseDefinition(source)
	if err != nil {
		return nil, err
	}
	dt, err := def.Build(s.deps.Registry, s.tableOptions()...)
	if err != nil {
		return nil, err
	}
	logger.DebugLog(ctx, "Rendered definition %q: %d columns, %d rows", def.Name, dt.ColumnCount(), dt.RowCount())
	return dt, nil
}

// =============================================================================
// Saved definitions
// =============================================================================

func (s *dataTableService) store() (DefinitionStore, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("%w: definition store", ErrSourceUnavailable)
	}
	return s.deps.Store, nil
}

func (s *dataTableService) SaveDefinition(ctx context.Context, name string, source []byte) (*googlecloud.TableDefinition, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	if !ValidDefinitionName(name) {
		return nil, fmt.Errorf("%w: definition name %q", ErrInvalidRequest, name)
	}

	// only definitions that build are stored
	dt, err := s.Render(ctx, source)
	if err != nil {
		return nil, err
	}

	def := &googlecloud.TableDefinition{
		Name:        name,
		Source:      string(source),
		ColumnCount: dt.ColumnCount(),
		RowCount:    dt.RowCount(),
	}
	if err := store.SaveDefinition(ctx, def); err != nil {
		return nil, err
	}
	logger.InfoLog(ctx, "Saved definition %s", name)
	return def, nil
}

func (s *dataTableService) GetDefinition(ctx context.Context, name string) (*googlecloud.TableDefinition, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	def, err := store.GetDefinition(ctx, name)
	return def, notFound(err)
}

func (s *dataTableService) RenderDefinition(ctx context.Context, name string) (*datatable.DataTable, error) {
	def, err := s.GetDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, []byte(def.Source))
}

func (s *dataTableService) ListDefinitions(ctx context.Context, pageSize int, cursor string) (*googlecloud.DefinitionPage, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	return store.ListDefinitions(ctx, pageSize, cursor)
}

func (s *dataTableService) DeleteDefinition(ctx context.Context, name string) error {
	store, err := s.store()
	if err != nil {
		return err
	}
	if err := store.DeleteDefinition(ctx, name); err != nil {
		return notFound(err)
	}
	logger.InfoLog(ctx, "Deleted definition %s", name)
	return nil
}

func notFound(err error) error {
	if errors.Is(err, googlecloud.ErrDefinitionNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// =============================================================================
// Named queries
// =============================================================================

func (s *dataTableService) QueryNames() []string {
	names := make([]string, 0, len(s.deps.Queries))
	for name := range s.deps.Queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type queryCall struct {
	name string
	args []interface{}
}

func (c queryCall) String() string { return c.name }

type queryResult struct {
	name  string
	table *datatable.DataTable
}

func (s *dataTableService) RunQuery(ctx context.Context, name string, args []interface{}) (*datatable.DataTable, error) {
	tables, err := s.runQueries(ctx, []queryCall{{name: name, args: args}})
	if err != nil {
		return nil, err
	}
	return tables[name], nil
}

// runQueries executes the calls concurrently. Transient database errors are
// retried with exponential backoff; any other failure cancels the rest.
func (s *dataTableService) runQueries(ctx context.Context, calls []queryCall) (map[string]*datatable.DataTable, error) {
	if s.deps.DB == nil {
		return nil, fmt.Errorf("%w: database", ErrSourceUnavailable)
	}
	items := make([]interface{}, len(calls))
	for i, call := range calls {
		if _, ok := s.deps.Queries[call.name]; !ok {
			return nil, fmt.Errorf("%w: query %q", ErrNotFound, call.name)
		}
		items[i] = call
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
	)
	results := dataflow.Map(ctx, dataflow.From(ctx, items...), func(item interface{}) (interface{}, error) {
		call := item.(queryCall)
		dt, err := tablesource.FromQuery(ctx, s.deps.DB, s.deps.Queries[call.name], call.args, s.tableOptions()...)
		if err != nil {
			if tablesource.Transient(err) {
				logger.WarnLog(ctx, "Query %s failed, retrying: %v", call.name, err)
			}
			return nil, err
		}
		return queryResult{name: call.name, table: dt}, nil
	},
		dataflow.WithWorkers(s.deps.Workers),
		dataflow.WithRetry(s.deps.MaxRetries, dataflow.ExponentialBackoff(s.deps.Backoff).Capped(maxQueryBackoff)),
		dataflow.WithRetryIf(tablesource.Transient),
		dataflow.WithErrorHandler(func(err error) bool {
			mu.Lock()
			defer mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
			cancel()
			return false
		}),
	)

	tables := make(map[string]*datatable.DataTable, len(calls))
	err := dataflow.ForEach(ctx, results, func(item interface{}) error {
		r := item.(queryResult)
		tables[r.name] = r.table
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		var itemErr *dataflow.ItemError
		if errors.As(firstErr, &itemErr) {
			logger.ErrorLog(ctx, "Query %v failed after %d attempt(s): %v", itemErr.Item, itemErr.Attempts, itemErr.Err)
		}
		return nil, firstErr
	}
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *dataTableService) renderDefinitions(ctx context.Context, names []string) (map[string]*datatable.DataTable, error) {
	tables := make([]*datatable.DataTable, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.Workers)
	for i, name := range names {
		g.Go(func() error {
			dt, err := s.RenderDefinition(ctx, name)
			if err != nil {
				return fmt.Errorf("definition %s: %w", name, err)
			}
			tables[i] = dt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*datatable.DataTable, len(names))
	for i, name := range names {
		out[name] = tables[i]
	}
	return out, nil
}

// Batch renders every requested definition and query. It fails as a whole if
// any single table fails.
func (s *dataTableService) Batch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Definitions) == 0 && len(req.Queries) == 0 {
		return nil, fmt.Errorf("%w: nothing to render", ErrInvalidRequest)
	}

	result := &BatchResult{
		Definitions: map[string]*datatable.DataTable{},
		Queries:     map[string]*datatable.DataTable{},
	}
	g, gctx := errgroup.WithContext(ctx)
	if len(req.Definitions) > 0 {
		g.Go(func() error {
			tables, err := s.renderDefinitions(gctx, req.Definitions)
			if err == nil {
				result.Definitions = tables
			}
			return err
		})
	}
	if len(req.Queries) > 0 {
		calls := make([]queryCall, len(req.Queries))
		for i, name := range req.Queries {
			calls[i] = queryCall{name: name}
		}
		g.Go(func() error {
			tables, err := s.runQueries(gctx, calls)
			if err == nil {
				result.Queries = tables
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.InfoLog(ctx, "Batch rendered %d definitions and %d queries", len(result.Definitions), len(result.Queries))
	return result, nil
}

// =============================================================================
// Elasticsearch and Arrow
// =============================================================================

func (s *dataTableService) Histogram(ctx context.Context, req tablesource.HistogramRequest) (*datatable.DataTable, error) {
	if s.deps.Elastic == nil {
		return nil, fmt.Errorf("%w: elasticsearch", ErrSourceUnavailable)
	}
	return tablesource.FromElasticHistogram(ctx, s.deps.Elastic, req, s.tableOptions()...)
}

func (s *dataTableService) FromArrow(ctx context.Context, r io.Reader) (*datatable.DataTable, error) {
	dt, err := tablesource.FromArrowStream(r, memory.NewGoAllocator(), s.tableOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	logger.DebugLog(ctx, "Decoded arrow stream: %d columns, %d rows", dt.ColumnCount(), dt.RowCount())
	return dt, nil
}
