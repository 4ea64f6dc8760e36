package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinfeed/clinfeed/internal/platform/api"
	"github.com/clinfeed/clinfeed/internal/platform/db"
	"github.com/clinfeed/clinfeed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/patients", h.Create)
	g.GET("/patients", h.List)
	g.GET("/patients/:uuid", h.Get)
	g.PUT("/patients/:uuid", h.Update)
	g.DELETE("/patients/:uuid", h.Retire)
}

func (h *Handler) Create(c echo.Context) error {
	payload, err := api.BindPayload(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Create(ctx, db.FeedAliasFromContext(ctx), payload)
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(http.StatusCreated, rec.ToAPIMap())
}

func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, db.FeedAliasFromContext(ctx), c.Param("uuid"))
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(http.StatusOK, rec.ToAPIMap())
}

func (h *Handler) Update(c echo.Context) error {
	payload, err := api.BindPayload(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Update(ctx, db.FeedAliasFromContext(ctx), c.Param("uuid"), payload)
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(http.StatusOK, rec.ToAPIMap())
}

func (h *Handler) Retire(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.svc.Retire(ctx, db.FeedAliasFromContext(ctx), c.Param("uuid")); err != nil {
		return api.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	recs, err := h.svc.List(ctx, db.FeedAliasFromContext(ctx), c.QueryParam("gender"), pg.Limit, pg.Offset)
	if err != nil {
		return api.Error(c, err)
	}
	data := make([]map[string]interface{}, len(recs))
	for i, r := range recs {
		data[i] = r.ToAPIMap()
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(data, len(data), pg.Limit, pg.Offset))
}
