package server

import (
	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph view routes
	apiRoutes.GET("/graph", routes.GetGraphHandler, middleware.RequirePermission(middleware.PermGraphView))
	apiRoutes.GET("/graph/detail", routes.GetGraphDetailHandler, middleware.RequirePermission(middleware.PermGraphView))
	apiRoutes.POST("/graph/filter", routes.SetFilterHandler, middleware.RequirePermission(middleware.PermGraphView))
	apiRoutes.GET("/graph/backup", routes.GetLatestBackupHandler, middleware.RequireAnyPermission(middleware.PermGraphLayout, middleware.PermGraphCommunity))

	// Layout routes
	apiRoutes.POST("/graph/positions", routes.UpdatePositionsHandler, middleware.RequirePermission(middleware.PermGraphPosition))
	apiRoutes.POST("/graph/layout", routes.QueueLayoutHandler, middleware.RequirePermission(middleware.PermGraphLayout))
	apiRoutes.POST("/graph/relayout", routes.RelayoutHandler, middleware.RequirePermission(middleware.PermGraphLayout))
	apiRoutes.POST("/graph/communities", routes.DetectCommunitiesHandler, middleware.RequirePermission(middleware.PermGraphCommunity))
}
