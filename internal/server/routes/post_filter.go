package routes

import (
	"net/http"

	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/pkg/view"

	"github.com/labstack/echo/v4"
)

type filterData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SetFilterHandler changes the visible time window. An empty body clears it.
func SetFilterHandler(c echo.Context) error {
	data := new(filterData)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: "Invalid request body"})
	}
	f, err := view.ParseFilter(data.From, data.To)
	if err != nil {
		return c.JSON(http.StatusBadRequest, graphResponse{Message: err.Error()})
	}

	c.(*middleware.AppContext).App.View.SetFilter(c.Request().Context(), f)
	return renderView(c, http.StatusOK, "", viewQuery{})
}
