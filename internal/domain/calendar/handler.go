package calendar

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:doctor_id/availability", h.GetAvailability)

	// Rule maintenance – staff only
	staff := api.Group("", auth.RequireRole(auth.RoleStaff))
	staff.GET("/doctors/:doctor_id/templates", h.ListTemplates)
	staff.POST("/doctors/:doctor_id/templates", h.CreateTemplate)
	staff.GET("/templates/:id", h.GetTemplate)
	staff.PUT("/templates/:id", h.UpdateTemplate)
	staff.DELETE("/templates/:id", h.DeleteTemplate)
	staff.GET("/doctors/:doctor_id/overrides", h.ListOverrides)
	staff.POST("/doctors/:doctor_id/overrides", h.CreateOverride)
	staff.GET("/overrides/:id", h.GetOverride)
	staff.PUT("/overrides/:id", h.UpdateOverride)
	staff.DELETE("/overrides/:id", h.DeleteOverride)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownReference):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrDuplicateRule):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Availability --

func (h *Handler) GetAvailability(c echo.Context) error {
	doctorID, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	date, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var branchID *uuid.UUID
	if raw := c.QueryParam("branch"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid branch")
		}
		branchID = &id
	}
	sched, err := h.svc.Availability(c.Request().Context(), doctorID, branchID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      date,
		"weekday":   date.Weekday().String(),
		"schedule":  sched,
	})
}

// -- Template Handlers --

func (h *Handler) CreateTemplate(c echo.Context) error {
	doctorID, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	var t WeeklyTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.DoctorID = doctorID
	if err := h.svc.CreateTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	doctorID, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListTemplates(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*WeeklyTemplate{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var t WeeklyTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTemplate(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Override Handlers --

func (h *Handler) CreateOverride(c echo.Context) error {
	doctorID, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	var o DateOverride
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.DoctorID = doctorID
	if err := h.svc.CreateOverride(c.Request().Context(), &o); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListOverrides(c echo.Context) error {
	doctorID, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	var from, to Date
	if raw := c.QueryParam("from"); raw != "" {
		if from, err = ParseDate(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if to, err = ParseDate(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	items, err := h.svc.ListOverrides(c.Request().Context(), doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*DateOverride{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetOverride(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.svc.GetOverride(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateOverride(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var o DateOverride
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.ID = id
	if err := h.svc.UpdateOverride(c.Request().Context(), &o); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOverride(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
