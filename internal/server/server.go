package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localwebb/backend/internal/config"
	"github.com/localwebb/backend/internal/db"
	"github.com/localwebb/backend/internal/metrics"
	"github.com/localwebb/backend/internal/queue"
	mid "github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/internal/storage"
	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/scheduler"
	"github.com/localwebb/backend/pkg/sink"
	"github.com/localwebb/backend/pkg/store"
	pgxstore "github.com/localwebb/backend/pkg/store/pgx"
	"github.com/localwebb/backend/pkg/view"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho builds the HTTP server around app without starting it.
func NewEcho(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("32M"))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("DB_MIGRATE", true) {
		if err := db.Migrate(databaseURL); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	graphStore := pgxstore.NewGraphDBStorageWithConnection(conn)
	graphID := config.GraphID()

	// Position writes must survive the shutdown signal so that Wait can
	// drain them.
	positions := sink.New(context.WithoutCancel(ctx), store.PositionWriter{Storage: graphStore, GraphID: graphID}, config.Sink())
	sched := scheduler.New(config.Scheduler(), nil)
	ctrl := view.New(sched, positions, config.ViewPolicy(), config.Render())

	app := &mid.App{
		Store:          graphStore,
		GraphID:        graphID,
		View:           ctrl,
		MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
		MasterUserID:   int64(util.GetEnvInt("MASTER_USER_ID", 0)),
		MasterUserRole: util.GetEnv("MASTER_USER_ROLE"),
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = &k
	} else {
		logger.Warn("AUTH_URL not set, API authentication is disabled")
	}

	if util.GetEnv("RABBITMQ_HOST") != "" {
		que := queue.Init()
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		app.Queue = ch
	}

	if util.GetEnv("AWS_BUCKET") != "" {
		if client := storage.NewS3Client(ctx); client != nil {
			app.S3 = client
		}
	}

	e := NewEcho(app)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			metrics.UpdateSystemMetrics()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port, "graph", graphID)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
	if err := positions.Wait(); err != nil {
		logger.Error("Some position writes failed before shutdown", "err", err)
	}
}
