package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/manabu/internal/model"
)

// mockRecommendationLister はテスト用の推薦リポジトリモック。
type mockRecommendationLister struct {
	listFunc func(ctx context.Context, userID string) ([]*model.StudyRecommendation, error)
}

func (m *mockRecommendationLister) ListByUserID(ctx context.Context, userID string) ([]*model.StudyRecommendation, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

// mockInsightLister はテスト用の週次サマリーリポジトリモック。
type mockInsightLister struct {
	listFunc func(ctx context.Context, userID string) ([]*model.WeeklyInsight, error)
}

func (m *mockInsightLister) ListByUserID(ctx context.Context, userID string) ([]*model.WeeklyInsight, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

func TestListRecommendations_ReturnsPriorityOrder(t *testing.T) {
	recs := &mockRecommendationLister{
		listFunc: func(ctx context.Context, userID string) ([]*model.StudyRecommendation, error) {
			return []*model.StudyRecommendation{
				{ID: "rec-1", CourseID: "course-1", Title: "停滞中のコースを再開", Priority: model.PriorityHigh, CreatedAt: time.Now()},
				{ID: "rec-2", Title: "復習を計画", Priority: model.PriorityLow, CreatedAt: time.Now()},
			}, nil
		},
	}
	h := NewInsightHandler(recs, &mockInsightLister{})

	req := authedRequest(http.MethodGet, "/api/recommendations", "")
	w := httptest.NewRecorder()

	h.ListRecommendations(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body []recommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("recommendation count = %d, want 2", len(body))
	}
	if body[0].Priority != "high" {
		t.Errorf("first priority = %q, want %q", body[0].Priority, "high")
	}
	// courseIdが空の推薦はキー省略（omitempty）
	if body[1].CourseID != "" {
		t.Errorf("second courseId = %q, want empty", body[1].CourseID)
	}
}

func TestListRecommendations_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewInsightHandler(&mockRecommendationLister{}, &mockInsightLister{})

	req := authedRequest(http.MethodGet, "/api/recommendations", "")
	w := httptest.NewRecorder()

	h.ListRecommendations(w, req)

	var body []recommendationResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 0 {
		t.Errorf("recommendation count = %d, want 0", len(body))
	}
}

func TestListRecommendations_NoUserID_Returns401(t *testing.T) {
	h := NewInsightHandler(&mockRecommendationLister{}, &mockInsightLister{})

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
	w := httptest.NewRecorder()

	h.ListRecommendations(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestListInsights_ReturnsWeeklySummaries(t *testing.T) {
	insights := &mockInsightLister{
		listFunc: func(ctx context.Context, userID string) ([]*model.WeeklyInsight, error) {
			return []*model.WeeklyInsight{
				{WeekStarting: "2026-08-17", HoursStudied: 6.5, CoursesProgressed: 2, AttendanceRate: 80, UpcomingDeadlines: 1},
				{WeekStarting: "2026-08-24", HoursStudied: 4.0, CoursesProgressed: 1, AttendanceRate: 100, UpcomingDeadlines: 3},
			}, nil
		},
	}
	h := NewInsightHandler(&mockRecommendationLister{}, insights)

	req := authedRequest(http.MethodGet, "/api/insights", "")
	w := httptest.NewRecorder()

	h.ListInsights(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body []insightResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("insight count = %d, want 2", len(body))
	}
	if body[0].WeekStarting != "2026-08-17" {
		t.Errorf("weekStarting = %q, want %q", body[0].WeekStarting, "2026-08-17")
	}
	if body[1].HoursStudied != 4.0 {
		t.Errorf("hoursStudied = %v, want 4.0", body[1].HoursStudied)
	}
}
