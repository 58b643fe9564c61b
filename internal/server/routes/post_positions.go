package routes

import (
	"errors"
	"net/http"

	"github.com/localwebb/backend/internal/server/middleware"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/view"

	"github.com/labstack/echo/v4"
)

type positionsData struct {
	Positions []common.PositionUpdate `validate:"required,min=1,dive"`
}

type positionsResponse struct {
	Message string `json:"message"`
	Moved   int    `json:"moved"`
}

// UpdatePositionsHandler applies dragged node positions. The body is a JSON
// array of {id, x, y}. Writes to the store happen in the background, so the
// response only confirms that the positions were accepted.
func UpdatePositionsHandler(c echo.Context) error {
	var updates []common.PositionUpdate
	if err := c.Bind(&updates); err != nil {
		return c.JSON(http.StatusBadRequest, positionsResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(&positionsData{Positions: updates}); err != nil {
		return c.JSON(http.StatusBadRequest, positionsResponse{Message: "Invalid request body"})
	}

	moved, err := c.(*middleware.AppContext).App.View.Move(updates...)
	if err != nil && !errors.Is(err, view.ErrUnknownNode) {
		return c.JSON(http.StatusInternalServerError, positionsResponse{Message: "Internal server error"})
	}
	msg := "Positions accepted"
	if err != nil {
		msg = "Positions accepted, unknown nodes skipped"
	}
	return c.JSON(http.StatusAccepted, positionsResponse{Message: msg, Moved: moved})
}
