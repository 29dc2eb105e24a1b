package directory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/pkg/apperrors"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/hospitals/:id", h.GetHospital)
	api.GET("/hospitals/:id/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
}

func (h *Handler) GetHospital(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hosp, err := h.repo.GetHospital(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.repo.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListDoctors 404s for an unknown hospital so clients can tell it apart from
// a hospital without doctors.
func (h *Handler) ListDoctors(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if _, err := h.repo.GetHospital(ctx, id); err != nil {
		return apperrors.ToHTTP(err)
	}
	items, err := h.repo.ListDoctorsForHospital(ctx, id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []Doctor{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}
