package routes

import (
	"net/http"

	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/internal/storage"
	"github.com/localwebb/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type backupResponse struct {
	Message  string                  `json:"message,omitempty"`
	Key      string                  `json:"key,omitempty"`
	Snapshot *storage.LayoutSnapshot `json:"snapshot,omitempty"`
}

// GetLatestBackupHandler returns the newest layout backup written by the worker.
func GetLatestBackupHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.S3 == nil {
		return c.JSON(http.StatusServiceUnavailable, backupResponse{Message: "Backups are not configured"})
	}

	ctx := c.Request().Context()
	key, err := storage.LatestSnapshotKey(ctx, app.S3, app.GraphID)
	if err != nil {
		logger.Error("[API] Failed to list layout backups", "graph", app.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, backupResponse{Message: "Internal server error"})
	}
	if key == "" {
		return c.JSON(http.StatusNotFound, backupResponse{Message: "No backup found"})
	}

	snap, err := storage.GetSnapshot(ctx, app.S3, key)
	if err != nil {
		logger.Error("[API] Failed to read layout backup", "key", key, "err", err)
		return c.JSON(http.StatusInternalServerError, backupResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusOK, backupResponse{Key: key, Snapshot: &snap})
}
