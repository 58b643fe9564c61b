package routes

import (
	"net/http"

	"github.com/localwebb/backend/internal/queue"
	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type layoutData struct {
	Communities bool `json:"communities"`
}

type layoutResponse struct {
	Message string `json:"message"`
	Token   uint64 `json:"token,omitempty"`
	Async   bool   `json:"async,omitempty"`
}

// QueueLayoutHandler hands a full relayout of the stored graph to the worker.
func QueueLayoutHandler(c echo.Context) error {
	data := new(layoutData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, layoutResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, layoutResponse{Message: "Layout queue is not configured"})
	}

	body, err := queue.NewLayoutJob(app.GraphID, data.Communities)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, layoutResponse{Message: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.LayoutQueue, body); err != nil {
		logger.Error("[API] Failed to queue layout", "graph", app.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, layoutResponse{Message: "Internal server error"})
	}
	return c.JSON(http.StatusAccepted, layoutResponse{Message: "Layout queued"})
}

// RelayoutHandler lays out the in-memory graph again. Small graphs finish
// within the request; large ones report a pending token.
func RelayoutHandler(c echo.Context) error {
	run := c.(*middleware.AppContext).App.View.Relayout(c.Request().Context())
	if run.Pending() {
		return c.JSON(http.StatusAccepted, layoutResponse{Message: "Layout started", Token: run.Token, Async: run.Async})
	}
	if run.Fallback() {
		return c.JSON(http.StatusOK, layoutResponse{Message: "Layout failed, showing fallback positions", Token: run.Token})
	}
	return c.JSON(http.StatusOK, layoutResponse{Message: "Layout applied", Token: run.Token})
}
