package routes

import (
	"net/http"

	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/pkg/community"
	"github.com/localwebb/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DetectCommunitiesHandler groups the current graph into communities, stores
// the annotation and returns the recoloured graph. Positions do not change.
func DetectCommunitiesHandler(c echo.Context) error {
	q := new(viewQuery)
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, q); err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	snap := app.View.Snapshot()
	res := community.Detect(snap.Nodes, snap.Edges)

	if err := app.Store.UpdateCommunities(c.Request().Context(), app.GraphID, res.Communities); err != nil {
		logger.Error("[API] Failed to store communities", "graph", app.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, graphResponse{Message: "Internal server error"})
	}
	app.View.SetCommunities(res.Communities)
	logger.Info("[API] Communities detected", "graph", app.GraphID, "count", len(res.Communities), "modularity", res.Modularity)

	return renderView(c, http.StatusOK, "", *q)
}
