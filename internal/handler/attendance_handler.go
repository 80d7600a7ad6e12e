package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/manabu/internal/middleware"
	"github.com/hitoshi/manabu/internal/model"
)

// AttendanceServiceInterface は出欠ハンドラーが必要とするサービスインターフェース。
type AttendanceServiceInterface interface {
	ListAttendance(ctx context.Context, userID string) ([]*model.AttendanceRecord, error)
	CreateAttendance(ctx context.Context, userID string, input model.AttendanceInput) (*model.AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, userID, recordID string, status model.AttendanceStatus, notes string) (*model.AttendanceRecord, error)
}

// AttendanceHandler は出欠記録管理のHTTPハンドラー。
type AttendanceHandler struct {
	service AttendanceServiceInterface
}

// NewAttendanceHandler はAttendanceHandlerを生成する。
func NewAttendanceHandler(service AttendanceServiceInterface) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// createAttendanceRequest は出欠記録作成リクエストのボディ。
type createAttendanceRequest struct {
	CourseID string `json:"courseId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Notes    string `json:"notes"`
}

// updateAttendanceRequest は出欠記録更新リクエストのボディ。
type updateAttendanceRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// attendanceResponse は出欠記録のAPIレスポンス。
type attendanceResponse struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

// ListAttendance はユーザーの全コースに属する出欠記録一覧を返す。
// GET /api/attendance
func (h *AttendanceHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	records, err := h.service.ListAttendance(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toAttendanceResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateAttendance は出欠記録の作成を処理する。
// POST /api/attendance
func (h *AttendanceHandler) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.CourseID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "コースIDは必須です。",
			Category: "validation",
			Action:   "コースIDを指定してください。",
		})
		return
	}

	record, err := h.service.CreateAttendance(r.Context(), userID, model.AttendanceInput{
		CourseID: req.CourseID,
		Date:     req.Date,
		Status:   model.AttendanceStatus(req.Status),
		Notes:    req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAttendanceResponse(record))
}

// UpdateAttendance は出欠記録の状態とメモを更新する。
// PUT /api/attendance/:id
func (h *AttendanceHandler) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	recordID := chi.URLParam(r, "id")

	var req updateAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	record, err := h.service.UpdateAttendance(r.Context(), userID, recordID, model.AttendanceStatus(req.Status), req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAttendanceResponse(record))
}

// toAttendanceResponse はmodel.AttendanceRecordからAPIレスポンスに変換する。
func toAttendanceResponse(rec *model.AttendanceRecord) attendanceResponse {
	return attendanceResponse{
		ID:       rec.ID,
		CourseID: rec.CourseID,
		Date:     rec.Date,
		Status:   string(rec.Status),
		Notes:    rec.Notes,
	}
}
