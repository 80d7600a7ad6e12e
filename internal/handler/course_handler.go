package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/manabu/internal/middleware"
	"github.com/hitoshi/manabu/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	ListCourses(ctx context.Context, userID string) ([]*model.Course, error)
	CreateCourse(ctx context.Context, userID string, input model.CourseInput) (*model.Course, error)
	UpdateProgress(ctx context.Context, userID, courseID string, completedSections int) (*model.Course, error)
	FindOwnedCourse(ctx context.Context, userID, courseID string) (*model.Course, error)
}

// CourseHandler はコース管理のHTTPハンドラー。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// createCourseRequest はコース登録リクエストのボディ。
type createCourseRequest struct {
	Title             string `json:"title"`
	Platform          string `json:"platform"`
	URL               string `json:"url"`
	TotalSections     int    `json:"totalSections"`
	CompletedSections int    `json:"completedSections"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate"`
	ImageURL          string `json:"imageUrl"`
}

// updateProgressRequest は進捗更新リクエストのボディ。
type updateProgressRequest struct {
	CompletedSections int `json:"completedSections"`
}

// courseResponse はコース情報のAPIレスポンス。
// サムネイル画像本体は /api/courses/{id}/image で別途配信する。
type courseResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Platform          string `json:"platform"`
	URL               string `json:"url"`
	Progress          int    `json:"progress"`
	TotalSections     int    `json:"totalSections"`
	CompletedSections int    `json:"completedSections"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate,omitempty"`
	ImageURL          string `json:"imageUrl,omitempty"`
	HasImage          bool   `json:"hasImage"`
}

// ListCourses はユーザーのコース一覧を返す。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	courses, err := h.service.ListCourses(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, toCourseResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateCourse はコース登録を処理する。
// POST /api/courses
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "コース名は必須です。",
			Category: "validation",
			Action:   "コース名を入力してください。",
		})
		return
	}

	course, err := h.service.CreateCourse(r.Context(), userID, model.CourseInput{
		Title:             req.Title,
		Platform:          req.Platform,
		URL:               req.URL,
		TotalSections:     req.TotalSections,
		CompletedSections: req.CompletedSections,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		ImageURL:          req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCourseResponse(course))
}

// UpdateProgress はコースの進捗を更新する。
// PUT /api/courses/:id
func (h *CourseHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	courseID := chi.URLParam(r, "id")

	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	course, err := h.service.UpdateProgress(r.Context(), userID, courseID, req.CompletedSections)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseResponse(course))
}

// GetImage はコースのサムネイル画像を返す。
// GET /api/courses/:id/image
func (h *CourseHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	courseID := chi.URLParam(r, "id")

	course, err := h.service.FindOwnedCourse(r.Context(), userID, courseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if len(course.ImageData) == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "IMAGE_NOT_FOUND",
			Message:  "サムネイル画像がありません。",
			Category: "course",
			Action:   "画像URL付きでコースを登録してください。",
		})
		return
	}

	w.Header().Set("Content-Type", course.ImageMime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(course.ImageData)
}

// toCourseResponse はmodel.CourseからAPIレスポンスに変換する。
func toCourseResponse(c *model.Course) courseResponse {
	return courseResponse{
		ID:                c.ID,
		Title:             c.Title,
		Platform:          c.Platform,
		URL:               c.URL,
		Progress:          c.Progress,
		TotalSections:     c.TotalSections,
		CompletedSections: c.CompletedSections,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		ImageURL:          c.ImageURL,
		HasImage:          len(c.ImageData) > 0,
	}
}
