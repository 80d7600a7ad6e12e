package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/manabu/internal/middleware"
	"github.com/hitoshi/manabu/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	ListEvents(ctx context.Context, userID string) ([]*model.CalendarEvent, error)
	CreateEvent(ctx context.Context, userID string, input model.EventInput) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// EventHandler はカレンダーイベント管理のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

// createEventRequest はイベント登録リクエストのボディ。
type createEventRequest struct {
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// eventResponse はイベント情報のAPIレスポンス。
type eventResponse struct {
	ID          string `json:"id"`
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ListEvents はユーザーの全コースに属するイベント一覧を返す。
// GET /api/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	events, err := h.service.ListEvents(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, toEventResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateEvent はイベント登録を処理する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.CourseID == "" || req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "コースIDとイベント名は必須です。",
			Category: "validation",
			Action:   "必須項目を入力してください。",
		})
		return
	}

	event, err := h.service.CreateEvent(r.Context(), userID, model.EventInput{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Date:        req.Date,
		Time:        req.Time,
		Type:        model.EventType(req.Type),
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// DeleteEvent はイベントを削除する。
// DELETE /api/events/:id
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	eventID := chi.URLParam(r, "id")

	if err := h.service.DeleteEvent(r.Context(), userID, eventID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toEventResponse はmodel.CalendarEventからAPIレスポンスに変換する。
func toEventResponse(e *model.CalendarEvent) eventResponse {
	return eventResponse{
		ID:          e.ID,
		CourseID:    e.CourseID,
		Title:       e.Title,
		Date:        e.Date,
		Time:        e.Time,
		Type:        string(e.Type),
		Description: e.Description,
	}
}
