package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_GetAvailability(t *testing.T) {
	h, e := newTestHandler()
	doctor, branch := uuid.New(), uuid.New()
	h.svc.CreateTemplate(context.Background(), &WeeklyTemplate{DoctorID: doctor, BranchID: branch, Weekday: Monday,
		StartTime: clock("10:00"), EndTime: clock("16:00")})

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-05-06", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())

	if err := h.GetAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Weekday  string `json:"weekday"`
		Schedule struct {
			Working bool   `json:"working"`
			Start   string `json:"start"`
			End     string `json:"end"`
		} `json:"schedule"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Weekday != "monday" || !body.Schedule.Working || body.Schedule.Start != "10:00" || body.Schedule.End != "16:00" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_GetAvailability_BadInput(t *testing.T) {
	h, e := newTestHandler()
	tests := []struct {
		name, doctor, query string
	}{
		{"bad doctor id", "nope", "?date=2024-05-06"},
		{"missing date", uuid.NewString(), ""},
		{"bad date", uuid.NewString(), "?date=06.05.2024"},
		{"bad branch", uuid.NewString(), "?date=2024-05-06&branch=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), httptest.NewRecorder())
			c.SetParamNames("doctor_id")
			c.SetParamValues(tt.doctor)
			expectHTTPError(t, h.GetAvailability(c), http.StatusBadRequest)
		})
	}
}

func postTemplate(h *Handler, e *echo.Echo, doctor uuid.UUID, body string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())
	return rec, h.CreateTemplate(c)
}

func TestHandler_CreateTemplate(t *testing.T) {
	h, e := newTestHandler()
	doctor := uuid.New()
	body := `{"branch_id":"` + uuid.NewString() + `","weekday":0,"start_time":"09:00","end_time":"17:00","break_start":"13:00","break_end":"14:00"}`

	rec, err := postTemplate(h, e, doctor, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got WeeklyTemplate
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.DoctorID != doctor || got.BreakStart == nil || *got.BreakStart != clock("13:00") {
		t.Errorf("unexpected template: %s", rec.Body.String())
	}

	_, err = postTemplate(h, e, doctor, `{"branch_id":"`+got.BranchID.String()+`","weekday":0,"start_time":"10:00","end_time":"12:00"}`)
	expectHTTPError(t, err, http.StatusConflict)
}

func TestHandler_CreateTemplate_Invalid(t *testing.T) {
	h, e := newTestHandler()
	_, err := postTemplate(h, e, uuid.New(), `{"branch_id":"`+uuid.NewString()+`","weekday":2,"start_time":"17:00","end_time":"09:00"}`)
	expectHTTPError(t, err, http.StatusBadRequest)

	_, err = postTemplate(h, e, uuid.New(), `{"weekday":2,"start_time":"9am"}`)
	expectHTTPError(t, err, http.StatusBadRequest)
}

func TestHandler_DeleteTemplate_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	expectHTTPError(t, h.DeleteTemplate(c), http.StatusNotFound)
}

func TestHandler_CreateAndListOverrides(t *testing.T) {
	h, e := newTestHandler()
	doctor := uuid.New()
	body := `{"branch_id":"` + uuid.NewString() + `","date":"2024-05-06","working":false,"note":"conference"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())
	if err := h.CreateOverride(c); err != nil {
		t.Fatalf("CreateOverride: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?from=2024-05-01&to=2024-05-31", nil), rec)
	c.SetParamNames("doctor_id")
	c.SetParamValues(doctor.String())
	if err := h.ListOverrides(c); err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	var items []DateOverride
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Note != "conference" || items[0].Working {
		t.Errorf("unexpected overrides: %s", rec.Body.String())
	}
}
