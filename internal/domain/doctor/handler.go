package doctor

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/doctorhub/doctorhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/doctors", h.Create)
	api.GET("/doctors", h.List)
	api.GET("/doctors/top", h.TopRated)
	api.GET("/doctors/:id", h.Get)
	api.PUT("/doctors/:id", h.Update)
	api.POST("/doctors/:id/rating", h.Rate)
	api.DELETE("/doctors/:id", h.Delete)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrLicenseTaken), errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidRating):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type createRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := &Doctor{
		Name:           req.Name,
		Email:          req.Email,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
	}
	if err := h.svc.Create(c.Request().Context(), d, req.Password); err != nil {
		if errors.Is(err, ErrLicenseTaken) || errors.Is(err, ErrEmailTaken) {
			return toHTTPError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	if spec := c.QueryParam("specialization"); spec != "" {
		items, total, err := h.svc.ListBySpecialization(c.Request().Context(), spec, pg.Limit, pg.Offset)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) TopRated(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	items, err := h.svc.TopRated(c.Request().Context(), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type updateRequest struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Update(c.Request().Context(), id, req.Name, req.Specialization, req.LicenseNumber)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type rateRequest struct {
	Score float64 `json:"score"`
}

func (h *Handler) Rate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Rate(c.Request().Context(), id, req.Score)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
