package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Catalog
}

func NewHandler(svc *Catalog) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public directory
	api.GET("/branches", h.ListBranches)
	api.GET("/branches/:id", h.GetBranch)
	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:doctor_id", h.GetDoctor)

	staff := api.Group("", auth.RequireRole(auth.RoleStaff))
	staff.POST("/branches", h.CreateBranch)
	staff.PUT("/branches/:id", h.UpdateBranch)
	staff.PUT("/branches/:id/work-hours", h.SetWorkHours)
	staff.POST("/services", h.CreateService)
	staff.PUT("/services/:id", h.UpdateService)
	staff.POST("/doctors", h.CreateDoctor)
	staff.PUT("/doctors/:doctor_id", h.UpdateDoctor)
	staff.GET("/patients", h.SearchPatients)

	member := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff))
	member.POST("/patients", h.CreatePatient)
	member.GET("/patients/me", h.GetMyProfile)
	member.GET("/patients/:patient_id", h.GetPatient)
	member.PUT("/patients/:patient_id", h.UpdatePatient)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicate):
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

// activeOnly hides inactive records from everyone but staff unless
// ?all=true is passed by staff.
func activeOnly(c echo.Context) bool {
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	return !(all && auth.IsStaff(c.Request().Context()))
}

// -- Branches --

func (h *Handler) ListBranches(c echo.Context) error {
	items, err := h.svc.ListBranches(c.Request().Context(), activeOnly(c))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Branch{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetBranch(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBranch(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CreateBranch(c echo.Context) error {
	var b Branch
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateBranch(c.Request().Context(), &b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) UpdateBranch(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var b Branch
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b.ID = id
	if err := h.svc.UpdateBranch(c.Request().Context(), &b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) SetWorkHours(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var hours []BranchWorkHour
	if err := c.Bind(&hours); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetWorkHours(c.Request().Context(), id, hours); err != nil {
		return httpError(err)
	}
	b, err := h.svc.GetBranch(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

// -- Services --

func (h *Handler) ListServices(c echo.Context) error {
	items, err := h.svc.ListServices(c.Request().Context(), activeOnly(c))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Service{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	svc, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) CreateService(c echo.Context) error {
	var svc Service
	if err := c.Bind(&svc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateService(c.Request().Context(), &svc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, svc)
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var svc Service
	if err := c.Bind(&svc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	svc.ID = id
	if err := h.svc.UpdateService(c.Request().Context(), &svc); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, svc)
}

// -- Doctors --

func (h *Handler) ListDoctors(c echo.Context) error {
	var branchID *uuid.UUID
	if raw := c.QueryParam("branch"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid branch")
		}
		branchID = &id
	}
	items, err := h.svc.ListDoctors(c.Request().Context(), branchID, activeOnly(c))
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c, "doctor_id")
	if err != nil {
		return err
	}
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = id
	if err := h.svc.UpdateDoctor(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !auth.IsStaff(ctx) {
		// Self-registration always links the profile to the caller.
		uid := auth.UserIDFromContext(ctx)
		p.UserID = &uid
	}
	if err := h.svc.CreatePatient(ctx, &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetMyProfile(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.GetPatientByUserID(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// canSeePatient allows staff, doctors and the patient the profile belongs to.
func canSeePatient(c echo.Context, p *Patient) bool {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, auth.RoleStaff, auth.RoleDoctor) {
		return true
	}
	return p.UserID != nil && *p.UserID == auth.UserIDFromContext(ctx)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c, "patient_id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !canSeePatient(c, p) {
		return echo.NewHTTPError(http.StatusForbidden, "not your profile")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := parseID(c, "patient_id")
	if err != nil {
		return err
	}
	existing, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return httpError(err)
	}
	staff := auth.IsStaff(ctx)
	if !staff && (existing.UserID == nil || *existing.UserID != auth.UserIDFromContext(ctx)) {
		return echo.NewHTTPError(http.StatusForbidden, "not your profile")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if !staff {
		p.UserID = existing.UserID
	}
	if err := h.svc.UpdatePatient(ctx, &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("q"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
