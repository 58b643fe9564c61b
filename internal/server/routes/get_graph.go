package routes

import (
	"net/http"

	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/render"
	"github.com/localwebb/backend/pkg/view"

	"github.com/labstack/echo/v4"
)

// viewQuery carries the camera state. A zero zoom means 1.
type viewQuery struct {
	Zoom       float64 `query:"zoom" validate:"gte=0"`
	EdgeLabels string  `query:"edge_labels" validate:"omitempty,oneof=true false"`
}

func (q viewQuery) zoom() float64 {
	if q.Zoom == 0 {
		return 1
	}
	return q.Zoom
}

func (q viewQuery) prefs() render.Prefs {
	p := render.DefaultPrefs()
	if q.EdgeLabels != "" {
		p.EdgeLabels = q.EdgeLabels == "true"
	}
	return p
}

type graphResponse struct {
	Message  string         `json:"message,omitempty"`
	Decision view.Decision  `json:"decision,omitempty"`
	Graph    *render.Graph  `json:"graph,omitempty"`
	Layout   *view.Status   `json:"layout,omitempty"`
	Detail   *render.Detail `json:"detail,omitempty"`
}

func renderView(c echo.Context, code int, decision view.Decision, q viewQuery) error {
	ctrl := c.(*middleware.AppContext).App.View
	g, status := ctrl.View(q.zoom(), q.prefs())
	return c.JSON(code, graphResponse{Decision: decision, Graph: &g, Layout: &status})
}

// GetGraphHandler loads the stored graph, lets the view controller decide
// whether it needs a layout and returns the annotated visible graph.
func GetGraphHandler(c echo.Context) error {
	q := new(viewQuery)
	if err := c.Bind(q); err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(q); err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	snap, err := app.Store.LoadSnapshot(ctx, app.GraphID)
	if err != nil {
		logger.Error("[API] Failed to load graph", "graph", app.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, graphResponse{Message: "Internal server error"})
	}

	decision, _ := app.View.Load(ctx, snap)
	return renderView(c, http.StatusOK, decision, *q)
}

// GetGraphDetailHandler evaluates the viewport detail flags for the current
// graph without reloading it.
func GetGraphDetailHandler(c echo.Context) error {
	q := new(viewQuery)
	if err := c.Bind(q); err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(q); err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Invalid request params"})
	}

	g, status := c.(*middleware.AppContext).App.View.View(q.zoom(), q.prefs())
	return c.JSON(http.StatusOK, graphResponse{Detail: &g.Detail, Layout: &status})
}
