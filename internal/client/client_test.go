package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/manabu/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c, server
}

func TestLogin_SendsCredentialsAndKeepsSessionCookie(t *testing.T) {
	var sawSessionCookie bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "alice@example.com" {
			t.Errorf("email = %q, want %q", body["email"], "alice@example.com")
		}
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "session-abc", Path: "/"})
		json.NewEncoder(w).Encode(map[string]string{
			"id":        "user-1",
			"username":  "alice",
			"email":     "alice@example.com",
			"createdAt": "2026-08-01T09:00:00Z",
		})
	})
	mux.HandleFunc("GET /api/auth/user", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session_id")
		if err == nil && cookie.Value == "session-abc" {
			sawSessionCookie = true
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "username": "alice"})
	})

	c, _ := newTestClient(t, mux)

	user, err := c.Login(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("username = %q, want %q", user.Username, "alice")
	}

	if _, err := c.CurrentUser(context.Background()); err != nil {
		t.Fatalf("CurrentUser returned error: %v", err)
	}
	if !sawSessionCookie {
		t.Error("expected session cookie to be sent on subsequent request")
	}
}

func TestLogin_InvalidCredentials_ReturnsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"code":     model.ErrCodeInvalidCredentials,
			"message":  "メールアドレスまたはパスワードが正しくありません。",
			"category": "auth",
			"action":   "入力内容を確認して再度お試しください。",
		})
	})

	c, _ := newTestClient(t, mux)

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestListCourses_DecodesWireFormat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"course-1","title":"Go入門","platform":"Udemy","url":"https://example.com/go","progress":40,"totalSections":10,"completedSections":4,"startDate":"2026-08-01"},
			{"id":"course-2","title":"SQL基礎","platform":"Coursera","url":"https://example.com/sql","progress":0,"totalSections":8,"completedSections":0,"startDate":"2026-08-15","endDate":"2026-12-20"}
		]`))
	})

	c, _ := newTestClient(t, mux)

	courses, err := c.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses returned error: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("course count = %d, want 2", len(courses))
	}
	if courses[0].Title != "Go入門" {
		t.Errorf("title = %q, want %q", courses[0].Title, "Go入門")
	}
	if courses[0].Progress != 40 {
		t.Errorf("progress = %d, want 40", courses[0].Progress)
	}
	if courses[1].EndDate != "2026-12-20" {
		t.Errorf("endDate = %q, want %q", courses[1].EndDate, "2026-12-20")
	}
}

func TestCreateCourse_SendsCamelCaseBody(t *testing.T) {
	var received map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/courses", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "course-new", "title": received["title"], "progress": 0,
		})
	})

	c, _ := newTestClient(t, mux)

	course, err := c.CreateCourse(context.Background(), model.CourseInput{
		Title:         "機械学習基礎",
		Platform:      "Coursera",
		URL:           "https://example.com/ml",
		TotalSections: 12,
		StartDate:     "2026-09-01",
	})
	if err != nil {
		t.Fatalf("CreateCourse returned error: %v", err)
	}
	if course.ID != "course-new" {
		t.Errorf("course ID = %q, want %q", course.ID, "course-new")
	}
	if received["totalSections"] != float64(12) {
		t.Errorf("totalSections = %v, want 12", received["totalSections"])
	}
	if received["startDate"] != "2026-09-01" {
		t.Errorf("startDate = %v, want 2026-09-01", received["startDate"])
	}
}

func TestUpdateCourseProgress_ReturnsRecalculatedCourse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/courses/course-1", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int
		json.NewDecoder(r.Body).Decode(&body)
		if body["completedSections"] != 7 {
			t.Errorf("completedSections = %d, want 7", body["completedSections"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "course-1", "progress": 70, "totalSections": 10, "completedSections": 7,
		})
	})

	c, _ := newTestClient(t, mux)

	course, err := c.UpdateCourseProgress(context.Background(), "course-1", 7)
	if err != nil {
		t.Fatalf("UpdateCourseProgress returned error: %v", err)
	}
	if course.Progress != 70 {
		t.Errorf("progress = %d, want 70", course.Progress)
	}
}

func TestFetchCourseImage_ReturnsBytesAndMime(t *testing.T) {
	imageData := []byte{0x89, 0x50, 0x4e, 0x47}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses/course-1/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	})

	c, _ := newTestClient(t, mux)

	data, mimeType, err := c.FetchCourseImage(context.Background(), "course-1")
	if err != nil {
		t.Fatalf("FetchCourseImage returned error: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("mime type = %q, want %q", mimeType, "image/png")
	}
	if len(data) != 4 {
		t.Errorf("data length = %d, want 4", len(data))
	}
}

func TestDeleteEvent_SendsDelete(t *testing.T) {
	var deletedPath string
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		deletedPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	c, _ := newTestClient(t, mux)

	if err := c.DeleteEvent(context.Background(), "event-9"); err != nil {
		t.Fatalf("DeleteEvent returned error: %v", err)
	}
	if deletedPath != "/api/events/event-9" {
		t.Errorf("path = %q, want %q", deletedPath, "/api/events/event-9")
	}
}

func TestCreateAttendance_DecodesResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/attendance", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"id": "rec-1", "courseId": "course-1", "date": "2026-08-31", "status": "present",
		})
	})

	c, _ := newTestClient(t, mux)

	record, err := c.CreateAttendance(context.Background(), model.AttendanceInput{
		CourseID: "course-1",
		Date:     "2026-08-31",
		Status:   model.AttendancePresent,
	})
	if err != nil {
		t.Fatalf("CreateAttendance returned error: %v", err)
	}
	if record.Status != model.AttendancePresent {
		t.Errorf("status = %q, want %q", record.Status, model.AttendancePresent)
	}
}

func TestListRecommendations_ParsesCreatedAt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"rec-1","courseId":"course-1","title":"停滞中のコースを再開","description":"14日間進捗がありません。","priority":"high","createdAt":"2026-08-30T12:00:00Z"}]`))
	})

	c, _ := newTestClient(t, mux)

	recs, err := c.ListRecommendations(context.Background())
	if err != nil {
		t.Fatalf("ListRecommendations returned error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recommendation count = %d, want 1", len(recs))
	}
	if recs[0].Priority != model.PriorityHigh {
		t.Errorf("priority = %q, want %q", recs[0].Priority, model.PriorityHigh)
	}
	if recs[0].CreatedAt.IsZero() {
		t.Error("expected createdAt to be parsed")
	}
}

func TestListInsights_DecodesSummaries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/insights", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"weekStarting":"2026-08-24","hoursStudied":5.5,"coursesProgressed":2,"attendanceRate":80,"upcomingDeadlines":1}]`))
	})

	c, _ := newTestClient(t, mux)

	insights, err := c.ListInsights(context.Background())
	if err != nil {
		t.Fatalf("ListInsights returned error: %v", err)
	}
	if len(insights) != 1 {
		t.Fatalf("insight count = %d, want 1", len(insights))
	}
	if insights[0].HoursStudied != 5.5 {
		t.Errorf("hoursStudied = %v, want 5.5", insights[0].HoursStudied)
	}
}

func TestCourseNotFound_ReturnsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":     model.ErrCodeCourseNotFound,
			"message":  "コースが見つかりません。",
			"category": "course",
		})
	})

	c, _ := newTestClient(t, mux)

	_, err := c.UpdateCourseProgress(context.Background(), "missing", 1)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeCourseNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeCourseNotFound)
	}
}

func TestNonJSONErrorBody_ReturnsStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	})

	c, _ := newTestClient(t, mux)

	_, err := c.ListCourses(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Error("expected plain error for non-JSON body, got *model.APIError")
	}
}
