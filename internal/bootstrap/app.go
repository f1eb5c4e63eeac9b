package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/locvowork/chartdata/internal/config"
	"github.com/locvowork/chartdata/internal/database"
	"github.com/locvowork/chartdata/internal/handler"
	"github.com/locvowork/chartdata/internal/logger"
	"github.com/locvowork/chartdata/internal/service"
	"github.com/locvowork/chartdata/pkg/datatable"
	"github.com/locvowork/chartdata/pkg/googlecloud"
	"github.com/olivere/elastic/v7"
)

type App struct {
	Echo    *echo.Echo
	DB      *sql.DB
	GCP     *googlecloud.Client
	Elastic *elastic.Client
}

func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = handler.JSONSerializer{}
	return &App{Echo: e}
}

func (a *App) Initialize(ctx context.Context) error {
	// Load environment configuration
	if err := config.LoadEnvConfig(); err != nil {
		return fmt.Errorf("failed to load env config: %w", err)
	}
	cfg := config.DefaultEnvConfig

	if err := logger.InitLogging(cfg.LOG_FILE_PATH, cfg.LOG_LEVEL); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.InfoLog(ctx, "Environment variables loaded successfully")

	deps := service.Deps{
		Registry:       datatable.NewFormatRegistry(),
		Location:       cfg.Location(),
		DateTimeFormat: cfg.DATE_TIME_FORMAT,
		Workers:        cfg.SOURCE_WORKERS,
		MaxRetries:     cfg.SOURCE_MAX_RETRIES,
	}

	if cfg.DB_DSN != "" {
		db, err := database.Open(ctx, database.Config{
			Driver:          cfg.DB_DRIVER,
			DSN:             cfg.DB_DSN,
			MaxOpenConns:    cfg.DB_MAX_OPEN_CONNS,
			MaxIdleConns:    cfg.DB_MAX_IDLE_CONNS,
			ConnMaxLifetime: cfg.DB_CONN_MAX_LIFETIME,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.DB = db
		deps.DB = db
	}

	if cfg.QUERIES_FILE != "" {
		queries, err := service.LoadQueries(cfg.QUERIES_FILE)
		if err != nil {
			return err
		}
		deps.Queries = queries
		logger.InfoLog(ctx, "Loaded %d named queries from %s", len(queries), cfg.QUERIES_FILE)
	}

	switch {
	case cfg.GCP_PROJECT_ID != "":
		gcpClient, err := googlecloud.NewClient(ctx, cfg.GCP_PROJECT_ID)
		if err != nil {
			return fmt.Errorf("failed to initialize GCP client: %w", err)
		}
		a.GCP = gcpClient
		deps.Store = gcpClient
	case cfg.DEFINITIONS_DIR != "":
		store, err := service.NewDirStore(cfg.DEFINITIONS_DIR)
		if err != nil {
			return err
		}
		deps.Store = store
	default:
		logger.WarnLog(ctx, "No definition store configured; saved definitions are disabled")
	}

	if cfg.ELASTICSEARCH_URL != "" {
		es, err := elastic.NewClient(
			elastic.SetURL(cfg.ELASTICSEARCH_URL),
			elastic.SetSniff(false),
			elastic.SetHealthcheckTimeoutStartup(10*time.Second),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize elasticsearch client: %w", err)
		}
		a.Elastic = es
		deps.Elastic = es
	}

	svc, err := service.NewDataTableService(deps)
	if err != nil {
		return fmt.Errorf("failed to initialize datatable service: %w", err)
	}
	dtHandler := handler.NewDataTableHandler(svc)

	// Register Middlewares
	a.RegisterMiddlewares()

	// Register Routes
	a.RegisterRoutes(dtHandler)

	return nil
}

func (a *App) RegisterMiddlewares() {
	a.Echo.Use(handler.RequestID)
	a.Echo.Use(middleware.Logger())
	a.Echo.Use(middleware.Recover())
	a.Echo.Use(middleware.CORS())
}

func (a *App) RegisterRoutes(dtHandler *handler.DataTableHandler) {
	a.Echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	dtHandler.RegisterRoutes(a.Echo.Group("/datatables"))
}

// Run serves until ctx is cancelled, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Echo.Start(":" + config.DefaultEnvConfig.APP_PORT)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.InfoLog(ctx, "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	}
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.GCP != nil {
		a.GCP.Close()
	}
	if a.Elastic != nil {
		a.Elastic.Stop()
	}
}
