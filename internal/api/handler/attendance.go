package handler

import (
	"net/http"
	"time"

	"github.com/crewdeck/crewdeck/internal/api/jsonapi"
	"github.com/crewdeck/crewdeck/internal/api/middleware"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/service"
)

// AttendanceHandler handles /api/v1/attendance.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

func attendanceResource(a *model.AttendanceRecord) jsonapi.ResourceObject {
	return jsonapi.ResourceObject{
		Type: "attendance_record",
		ID:   a.ID,
		Attributes: map[string]any{
			"organization_id": a.OrganizationID,
			"employee_id":     a.EmployeeID,
			"day":             a.Day,
			"check_in":        a.CheckIn.UTC().Format(time.RFC3339),
			"check_out":       timePtr(a.CheckOut),
			"regular_hours":   a.RegularHours.String(),
			"overtime_hours":  a.OvertimeHours.String(),
		},
	}
}

// CheckIn handles POST /api/v1/attendance/check-in.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	record, err := h.attendance.CheckIn(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, attendanceResource(record))
}

// CheckOut handles POST /api/v1/attendance/check-out.
func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	record, err := h.attendance.CheckOut(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, attendanceResource(record))
}

// List handles GET /api/v1/attendance.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.AttendanceFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		From:       r.URL.Query().Get("from"),
		To:         r.URL.Query().Get("to"),
	}
	ctx := r.Context()
	records, err := h.attendance.List(ctx, middleware.ActorFromContext(ctx), middleware.ScopeFromContext(ctx), filter)
	if err != nil {
		jsonapi.RenderAppError(w, err)
		return
	}
	data := make([]any, 0, len(records))
	for i := range records {
		data = append(data, attendanceResource(&records[i]))
	}
	jsonapi.RenderList(w, http.StatusOK, data, nil)
}
