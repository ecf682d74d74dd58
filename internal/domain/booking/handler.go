package booking

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/domain/catalog"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	member := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff))
	member.POST("/appointments", h.Create)
	member.GET("/appointments", h.List)
	member.GET("/appointments/summary", h.Summary)
	member.GET("/appointments/:id", h.Get)
	member.POST("/appointments/:id/status", h.ChangeStatus)
	member.GET("/patients/:patient_id/appointments", h.ListByPatient)

	clinician := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleStaff))
	clinician.GET("/day-schedule", h.DaySchedule)
	clinician.POST("/appointments/:id/update", h.UpdateDetails)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrTransition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrSlotTaken):
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

func parseOptionalID(raw, name string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func parseOptionalDate(raw, name string) (calendar.Date, error) {
	if raw == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return d, nil
}

// caller is who is asking. Staff see everything; a doctor sees their own
// appointments; a patient sees theirs.
type caller struct {
	staff     bool
	doctorID  *uuid.UUID
	patientID *uuid.UUID
}

func (h *Handler) caller(ctx context.Context) (caller, error) {
	if auth.IsStaff(ctx) {
		return caller{staff: true}, nil
	}
	userID := auth.UserIDFromContext(ctx)
	var who caller
	if auth.HasRole(ctx, auth.RoleDoctor) {
		d, err := h.svc.dir.GetDoctorByUserID(ctx, userID)
		switch {
		case err == nil:
			who.doctorID = &d.ID
		case !errors.Is(err, catalog.ErrNotFound):
			return who, err
		}
	}
	if auth.HasRole(ctx, auth.RolePatient) {
		p, err := h.svc.dir.GetPatientByUserID(ctx, userID)
		switch {
		case err == nil:
			who.patientID = &p.ID
		case !errors.Is(err, catalog.ErrNotFound):
			return who, err
		}
	}
	return who, nil
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func (w caller) canSee(a *Appointment) bool {
	return w.staff || sameID(w.doctorID, a.DoctorID) || sameID(w.patientID, a.PatientID)
}

func (w caller) canManage(a *Appointment) bool {
	return w.staff || sameID(w.doctorID, a.DoctorID)
}

// -- Booking --

type bookingResponse struct {
	Success       bool              `json:"success"`
	AppointmentID *uuid.UUID        `json:"appointment_id,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, bookingResponse{Errors: map[string]string{"body": "invalid request body"}})
	}
	who, err := h.caller(ctx)
	if err != nil {
		return httpError(err)
	}
	if !who.staff && who.doctorID == nil {
		// Self-service bookings are always made for the caller's own profile.
		if who.patientID == nil {
			return c.JSON(http.StatusBadRequest, bookingResponse{
				Errors: map[string]string{"patient_id": "create a patient profile before booking"},
			})
		}
		req.PatientID = who.patientID
	}

	a, err := h.svc.Book(ctx, req)
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			status := http.StatusBadRequest
			if errors.Is(err, ErrSlotTaken) {
				status = http.StatusConflict
			}
			return c.JSON(status, bookingResponse{Errors: rej.Fields})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, bookingResponse{Success: true, AppointmentID: &a.ID})
}

// -- Day grid --

// DaySchedule accepts doctor filters either repeated (?doctor=a&doctor=b)
// or comma separated.
func (h *Handler) DaySchedule(c echo.Context) error {
	date, err := parseOptionalDate(c.QueryParam("date"), "date")
	if err != nil {
		return err
	}
	branchID, err := parseOptionalID(c.QueryParam("branch"), "branch")
	if err != nil {
		return err
	}
	q := GridQuery{Date: date, BranchID: branchID}
	for _, raw := range c.QueryParams()["doctor"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor")
			}
			q.DoctorIDs = append(q.DoctorIDs, id)
		}
	}
	if raw := c.QueryParam("step"); raw != "" {
		step, err := strconv.Atoi(raw)
		if err != nil || !ValidGranularity(step) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid step")
		}
		q.Granularity = step
	}
	grid, err := h.svc.DaySchedule(c.Request().Context(), q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, grid)
}

// -- Lifecycle --

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	f := Filter{Limit: pg.Limit, Offset: pg.Offset, Query: c.QueryParam("q")}
	var err error
	if f.From, err = parseOptionalDate(c.QueryParam("date_from"), "date_from"); err != nil {
		return err
	}
	if f.To, err = parseOptionalDate(c.QueryParam("date_to"), "date_to"); err != nil {
		return err
	}
	if raw := c.QueryParam("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, Status(strings.TrimSpace(st)))
		}
	}
	if f.BranchID, err = parseOptionalID(c.QueryParam("branch"), "branch"); err != nil {
		return err
	}
	if f.DoctorID, err = parseOptionalID(c.QueryParam("doctor"), "doctor"); err != nil {
		return err
	}

	who, err := h.caller(ctx)
	if err != nil {
		return httpError(err)
	}
	switch {
	case who.staff:
	case who.doctorID != nil:
		f.DoctorID = who.doctorID
	case who.patientID != nil:
		f.PatientID = who.patientID
	default:
		return c.JSON(http.StatusOK, pagination.NewResponse([]*Appointment{}, 0, pg.Limit, pg.Offset))
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) load(c echo.Context) (*Appointment, caller, error) {
	ctx := c.Request().Context()
	id, err := parseID(c, "id")
	if err != nil {
		return nil, caller{}, err
	}
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, caller{}, httpError(err)
	}
	who, err := h.caller(ctx)
	if err != nil {
		return nil, caller{}, httpError(err)
	}
	if !who.canSee(a) {
		return nil, caller{}, httpError(ErrNotFound)
	}
	return a, who, nil
}

func (h *Handler) Get(c echo.Context) error {
	a, _, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status Status `json:"status"`
}

// ChangeStatus lets staff and the treating doctor move an appointment
// through its lifecycle. A patient may only cancel their own.
func (h *Handler) ChangeStatus(c echo.Context) error {
	a, who, err := h.load(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !who.canManage(a) && req.Status != StatusCancelled {
		return httpError(ErrForbidden)
	}
	updated, err := h.svc.ChangeStatus(c.Request().Context(), a.ID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "status": updated.Status})
}

type detailsRequest struct {
	Note            string     `json:"note"`
	ServiceID       *uuid.UUID `json:"service_id"`
	InternalComment *string    `json:"internal_comment"`
}

func (h *Handler) UpdateDetails(c echo.Context) error {
	a, who, err := h.load(c)
	if err != nil {
		return err
	}
	if !who.canManage(a) {
		return httpError(ErrForbidden)
	}
	var req detailsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateDetails(c.Request().Context(), a.ID, req.Note, req.ServiceID, req.InternalComment)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Summary(c echo.Context) error {
	ctx := c.Request().Context()
	who, err := h.caller(ctx)
	if err != nil {
		return httpError(err)
	}
	var scope SummaryScope
	switch {
	case who.staff:
		if scope.DoctorID, err = parseOptionalID(c.QueryParam("doctor"), "doctor"); err != nil {
			return err
		}
		if scope.PatientID, err = parseOptionalID(c.QueryParam("patient"), "patient"); err != nil {
			return err
		}
	case who.doctorID != nil:
		scope.DoctorID = who.doctorID
	case who.patientID != nil:
		scope.PatientID = who.patientID
	default:
		return httpError(ErrForbidden)
	}
	sum, err := h.svc.Summary(ctx, scope)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := parseID(c, "patient_id")
	if err != nil {
		return err
	}
	who, err := h.caller(ctx)
	if err != nil {
		return httpError(err)
	}
	if !who.staff && who.doctorID == nil && !sameID(who.patientID, &patientID) {
		return httpError(ErrForbidden)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
