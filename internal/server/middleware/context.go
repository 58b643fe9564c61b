package middleware

import (
	"github.com/localwebb/backend/internal/queue"
	"github.com/localwebb/backend/internal/storage"
	"github.com/localwebb/backend/pkg/store"
	"github.com/localwebb/backend/pkg/view"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

type App struct {
	Store   store.GraphStorage
	GraphID string
	View    *view.Controller

	// Queue publishes worker jobs. Nil disables the queued layout route.
	Queue queue.Publisher
	// S3 holds layout backups. Nil disables backup lookups.
	S3 storage.ObjectStore

	// Key verifies bearer tokens. Nil disables authentication.
	Key            *keyfunc.Keyfunc
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
