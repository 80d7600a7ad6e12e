package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/manabu/internal/middleware"
	"github.com/hitoshi/manabu/internal/model"
)

// RecommendationListerInterface は推薦ハンドラーが必要とするインターフェース。
// repository.RecommendationRepositoryの部分集合として定義する。
type RecommendationListerInterface interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.StudyRecommendation, error)
}

// InsightListerInterface は週次サマリーハンドラーが必要とするインターフェース。
// repository.InsightRepositoryの部分集合として定義する。
type InsightListerInterface interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.WeeklyInsight, error)
}

// InsightHandler は学習推薦と週次サマリーの読み取り専用HTTPハンドラー。
// どちらもバックグラウンドジョブが書き込み、クライアントは参照のみ行う。
type InsightHandler struct {
	recommendations RecommendationListerInterface
	insights        InsightListerInterface
}

// NewInsightHandler はInsightHandlerを生成する。
func NewInsightHandler(recommendations RecommendationListerInterface, insights InsightListerInterface) *InsightHandler {
	return &InsightHandler{
		recommendations: recommendations,
		insights:        insights,
	}
}

// recommendationResponse は学習推薦のAPIレスポンス。
type recommendationResponse struct {
	ID          string `json:"id"`
	CourseID    string `json:"courseId,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	CreatedAt   string `json:"createdAt"`
}

// insightResponse は週次サマリーのAPIレスポンス。
type insightResponse struct {
	WeekStarting      string  `json:"weekStarting"`
	HoursStudied      float64 `json:"hoursStudied"`
	CoursesProgressed int     `json:"coursesProgressed"`
	AttendanceRate    int     `json:"attendanceRate"`
	UpcomingDeadlines int     `json:"upcomingDeadlines"`
}

// ListRecommendations はユーザーの学習推薦一覧を優先度順で返す。
// GET /api/recommendations
func (h *InsightHandler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	recs, err := h.recommendations.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]recommendationResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, recommendationResponse{
			ID:          rec.ID,
			CourseID:    rec.CourseID,
			Title:       rec.Title,
			Description: rec.Description,
			Priority:    string(rec.Priority),
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListInsights はユーザーの週次サマリー一覧を週の昇順で返す。
// GET /api/insights
func (h *InsightHandler) ListInsights(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	insights, err := h.insights.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]insightResponse, 0, len(insights))
	for _, in := range insights {
		resp = append(resp, insightResponse{
			WeekStarting:      in.WeekStarting,
			HoursStudied:      in.HoursStudied,
			CoursesProgressed: in.CoursesProgressed,
			AttendanceRate:    in.AttendanceRate,
			UpcomingDeadlines: in.UpcomingDeadlines,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
