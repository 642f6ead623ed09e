package scheduling

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
	api.POST("/slots", h.CreateSlot)
	api.GET("/slots", h.ListSlots)
	api.GET("/slots/:id", h.GetSlot)
	api.PUT("/slots/:id", h.UpdateSlot)
	api.DELETE("/slots/:id", h.DeleteSlot)

	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
}

// toHTTPError maps domain sentinel errors to HTTP status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrDoctorNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTimeConflict),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrSlotBooked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrPastStartTime),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidTime),
		errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Slot Handlers --

func (h *Handler) CreateSlot(c echo.Context) error {
	var sl Slot
	if err := c.Bind(&sl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSlot(c.Request().Context(), &sl); err != nil {
		if errors.Is(err, ErrDoctorNotFound) || errors.Is(err, ErrInvalidInterval) ||
			errors.Is(err, ErrPastStartTime) || errors.Is(err, ErrTimeConflict) {
			return toHTTPError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sl, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) ListSlots(c echo.Context) error {
	pg := pagination.FromContext(c)

	var q SlotQuery
	if doctorID := c.QueryParam("doctor_id"); doctorID != "" {
		did, err := uuid.Parse(doctorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		q.DoctorID = &did
	}
	q.Date = c.QueryParam("date")
	q.Start = c.QueryParam("start")
	q.End = c.QueryParam("end")
	if avail := c.QueryParam("available"); avail != "" {
		b, err := strconv.ParseBool(avail)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid available flag")
		}
		q.Available = &b
	}

	items, total, err := h.svc.ListSlots(c.Request().Context(), q, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var sl Slot
	if err := c.Bind(&sl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sl.ID = id
	if err := h.svc.UpdateSlot(c.Request().Context(), &sl); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) DeleteSlot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSlot(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointment Handlers --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		if errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrDoctorNotFound) ||
			errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrSlotUnavailable) ||
			errors.Is(err, ErrInvalidStatus) {
			return toHTTPError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)

	var q AppointmentQuery
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		q.PatientID = &pid
	}
	if doctorID := c.QueryParam("doctor_id"); doctorID != "" {
		did, err := uuid.Parse(doctorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		q.DoctorID = &did
	}
	q.Status = c.QueryParam("status")
	q.DateFrom = c.QueryParam("date_from")
	q.DateTo = c.QueryParam("date_to")

	items, total, err := h.svc.ListAppointments(c.Request().Context(), q, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type updateAppointmentRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, req.Status, req.Notes)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
