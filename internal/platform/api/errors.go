package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinfeed/clinfeed/internal/platform/record"
)

// Error translates record-layer errors into HTTP responses: aggregated
// validation problems become a 400 with the field list, optimistic-lock
// conflicts a 409, a miss a 404.
func Error(c echo.Context, err error) error {
	var verrs *record.ValidationErrors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": verrs.Errors,
		})
	}

	var confls *record.ConflictErrors
	if errors.As(err, &confls) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":     "update conflict",
			"conflicts": confls.Conflicts,
		})
	}

	if errors.Is(err, record.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	if errors.Is(err, record.ErrRetryExhausted) {
		return echo.NewHTTPError(http.StatusConflict, "row contended, retry later")
	}

	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// BindPayload decodes a JSON request body into a generic map, the shape the
// record layer consumes.
func BindPayload(c echo.Context) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if err := c.Bind(&payload); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body")
	}
	return payload, nil
}
