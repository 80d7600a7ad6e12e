package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/manabu/internal/model"
)

type mockUserRepo struct {
	listIDsFunc func(ctx context.Context) ([]string, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error)       { return nil, nil }
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) ListIDs(ctx context.Context) ([]string, error) {
	if m.listIDsFunc != nil {
		return m.listIDsFunc(ctx)
	}
	return nil, nil
}

type mockCourseRepo struct {
	listFunc func(ctx context.Context, userID string) ([]*model.Course, error)
}

func (m *mockCourseRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Course, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}
func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	return nil, nil
}
func (m *mockCourseRepo) Create(ctx context.Context, course *model.Course) error { return nil }
func (m *mockCourseRepo) UpdateProgress(ctx context.Context, id string, completedSections, progress int) error {
	return nil
}
func (m *mockCourseRepo) UpdateThumbnail(ctx context.Context, id string, imageData []byte, imageMime string) error {
	return nil
}

type mockEventRepo struct {
	listFunc func(ctx context.Context, userID string) ([]*model.CalendarEvent, error)
}

func (m *mockEventRepo) ListByUserID(ctx context.Context, userID string) ([]*model.CalendarEvent, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}
func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*model.CalendarEvent, error) {
	return nil, nil
}
func (m *mockEventRepo) Create(ctx context.Context, event *model.CalendarEvent) error { return nil }
func (m *mockEventRepo) DeleteByID(ctx context.Context, id string) error              { return nil }

type mockAttendanceRepo struct {
	listFunc func(ctx context.Context, userID string) ([]*model.AttendanceRecord, error)
}

func (m *mockAttendanceRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AttendanceRecord, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}
func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	return nil, nil
}
func (m *mockAttendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	return nil
}
func (m *mockAttendanceRepo) UpdateStatus(ctx context.Context, id string, status model.AttendanceStatus, notes string) error {
	return nil
}

type mockRecRepo struct {
	mu          sync.Mutex
	replaceFunc func(ctx context.Context, userID string, recs []*model.StudyRecommendation) error
	replaced    map[string][]*model.StudyRecommendation
}

func (m *mockRecRepo) ListByUserID(ctx context.Context, userID string) ([]*model.StudyRecommendation, error) {
	return nil, nil
}
func (m *mockRecRepo) ReplaceForUser(ctx context.Context, userID string, recs []*model.StudyRecommendation) error {
	if m.replaceFunc != nil {
		return m.replaceFunc(ctx, userID, recs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaced == nil {
		m.replaced = make(map[string][]*model.StudyRecommendation)
	}
	m.replaced[userID] = recs
	return nil
}

// stubCollector はテスト用のメトリクス記録スタブ。
type stubCollector struct {
	mu             sync.Mutex
	successCount   int
	failureCount   int
	cycleDurations []time.Duration
}

func (s *stubCollector) RecordRecommendSuccess(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successCount++
}

func (s *stubCollector) RecordRecommendFailure(userID string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
}

func (s *stubCollector) RecordRecommendCycleDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycleDurations = append(s.cycleDurations, d)
}

func (s *stubCollector) RecordThumbnailFetchSuccess() {}
func (s *stubCollector) RecordThumbnailFetchFailure() {}
func (s *stubCollector) RecordHTTPStatus(code int)    {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fixedNow はテストの基準時刻。2026-08-31 12:00 UTC。
var fixedNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestGenerator(
	courses *mockCourseRepo,
	events *mockEventRepo,
	attendance *mockAttendanceRepo,
	recs *mockRecRepo,
	users *mockUserRepo,
	collector *stubCollector,
) *Generator {
	g := NewGenerator(users, courses, events, attendance, recs, collector, testLogger(), 4)
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestGenerateForUser_StalledCourse_ProducesHighPriority(t *testing.T) {
	courses := &mockCourseRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.Course, error) {
			return []*model.Course{
				{ID: "course-stalled", Title: "Go入門", Progress: 40, UpdatedAt: fixedNow.AddDate(0, 0, -20)},
				{ID: "course-fresh", Title: "SQL基礎", Progress: 40, UpdatedAt: fixedNow.AddDate(0, 0, -2)},
				{ID: "course-unstarted", Title: "未着手", Progress: 0, UpdatedAt: fixedNow.AddDate(0, 0, -30)},
			}, nil
		},
	}
	recRepo := &mockRecRepo{}
	g := newTestGenerator(courses, &mockEventRepo{}, &mockAttendanceRepo{}, recRepo, &mockUserRepo{}, &stubCollector{})

	if err := g.GenerateForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	recs := recRepo.replaced["user-1"]
	if len(recs) != 1 {
		t.Fatalf("recommendation count = %d, want 1", len(recs))
	}
	if recs[0].CourseID != "course-stalled" {
		t.Errorf("courseID = %q, want %q", recs[0].CourseID, "course-stalled")
	}
	if recs[0].Priority != model.PriorityHigh {
		t.Errorf("priority = %q, want %q", recs[0].Priority, model.PriorityHigh)
	}
}

func TestGenerateForUser_ImminentDeadline_ProducesHighPriority(t *testing.T) {
	courses := &mockCourseRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.Course, error) {
			return []*model.Course{
				{ID: "course-1", Title: "Go入門", Progress: 50, UpdatedAt: fixedNow},
				{ID: "course-done", Title: "完了済み", Progress: 100, UpdatedAt: fixedNow},
			}, nil
		},
	}
	events := &mockEventRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.CalendarEvent, error) {
			return []*model.CalendarEvent{
				{ID: "e1", CourseID: "course-1", Type: model.EventTypeDeadline, Date: "2026-09-02"},
				{ID: "e2", CourseID: "course-done", Type: model.EventTypeExam, Date: "2026-09-02"},
				{ID: "e3", CourseID: "course-1", Type: model.EventTypeDeadline, Date: "2026-09-10"},
				{ID: "e4", CourseID: "course-1", Type: model.EventTypeLecture, Date: "2026-09-01"},
			}, nil
		},
	}
	recRepo := &mockRecRepo{}
	g := newTestGenerator(courses, events, &mockAttendanceRepo{}, recRepo, &mockUserRepo{}, &stubCollector{})

	if err := g.GenerateForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	recs := recRepo.replaced["user-1"]
	// 完了済みコースの試験・窓外の締切・講義イベントは推薦にならない
	if len(recs) != 1 {
		t.Fatalf("recommendation count = %d, want 1", len(recs))
	}
	if recs[0].CourseID != "course-1" || recs[0].Priority != model.PriorityHigh {
		t.Errorf("unexpected recommendation: %+v", recs[0])
	}
}

func TestGenerateForUser_WeakAttendance_ProducesMediumPriority(t *testing.T) {
	courses := &mockCourseRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.Course, error) {
			return []*model.Course{
				{ID: "course-1", Title: "線形代数", Progress: 50, UpdatedAt: fixedNow},
				{ID: "course-2", Title: "統計学", Progress: 50, UpdatedAt: fixedNow},
			}, nil
		},
	}
	attendance := &mockAttendanceRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.AttendanceRecord, error) {
			return []*model.AttendanceRecord{
				// course-1: 出席1/4 = 25%
				{CourseID: "course-1", Status: model.AttendancePresent},
				{CourseID: "course-1", Status: model.AttendanceAbsent},
				{CourseID: "course-1", Status: model.AttendanceAbsent},
				{CourseID: "course-1", Status: model.AttendanceExcused},
				// course-2: 記録2件は判定対象外
				{CourseID: "course-2", Status: model.AttendanceAbsent},
				{CourseID: "course-2", Status: model.AttendanceAbsent},
			}, nil
		},
	}
	recRepo := &mockRecRepo{}
	g := newTestGenerator(courses, &mockEventRepo{}, attendance, recRepo, &mockUserRepo{}, &stubCollector{})

	if err := g.GenerateForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	recs := recRepo.replaced["user-1"]
	if len(recs) != 1 {
		t.Fatalf("recommendation count = %d, want 1", len(recs))
	}
	if recs[0].CourseID != "course-1" || recs[0].Priority != model.PriorityMedium {
		t.Errorf("unexpected recommendation: %+v", recs[0])
	}
}

func TestGenerateForUser_NearComplete_ProducesLowPriority(t *testing.T) {
	courses := &mockCourseRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.Course, error) {
			return []*model.Course{
				{ID: "course-1", Title: "Go入門", Progress: 90, TotalSections: 10, CompletedSections: 9, UpdatedAt: fixedNow},
				{ID: "course-2", Title: "完了済み", Progress: 100, TotalSections: 10, CompletedSections: 10, UpdatedAt: fixedNow},
			}, nil
		},
	}
	recRepo := &mockRecRepo{}
	g := newTestGenerator(courses, &mockEventRepo{}, &mockAttendanceRepo{}, recRepo, &mockUserRepo{}, &stubCollector{})

	if err := g.GenerateForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	recs := recRepo.replaced["user-1"]
	if len(recs) != 1 {
		t.Fatalf("recommendation count = %d, want 1", len(recs))
	}
	if recs[0].Priority != model.PriorityLow {
		t.Errorf("priority = %q, want %q", recs[0].Priority, model.PriorityLow)
	}
}

func TestGenerateForUser_OrdersHighBeforeLow(t *testing.T) {
	courses := &mockCourseRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.Course, error) {
			return []*model.Course{
				{ID: "course-near", Title: "完了間近", Progress: 85, TotalSections: 20, CompletedSections: 17, UpdatedAt: fixedNow},
				{ID: "course-stalled", Title: "停滞中", Progress: 30, UpdatedAt: fixedNow.AddDate(0, 0, -15)},
			}, nil
		},
	}
	recRepo := &mockRecRepo{}
	g := newTestGenerator(courses, &mockEventRepo{}, &mockAttendanceRepo{}, recRepo, &mockUserRepo{}, &stubCollector{})

	if err := g.GenerateForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	recs := recRepo.replaced["user-1"]
	if len(recs) != 2 {
		t.Fatalf("recommendation count = %d, want 2", len(recs))
	}
	if recs[0].Priority != model.PriorityHigh {
		t.Errorf("first priority = %q, want %q", recs[0].Priority, model.PriorityHigh)
	}
	if recs[1].Priority != model.PriorityLow {
		t.Errorf("second priority = %q, want %q", recs[1].Priority, model.PriorityLow)
	}
}

func TestGenerateForUser_NoData_ReplacesWithEmptySet(t *testing.T) {
	recRepo := &mockRecRepo{}
	g := newTestGenerator(&mockCourseRepo{}, &mockEventRepo{}, &mockAttendanceRepo{}, recRepo, &mockUserRepo{}, &stubCollector{})

	if err := g.GenerateForUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	recs, ok := recRepo.replaced["user-1"]
	if !ok {
		t.Fatal("expected ReplaceForUser to be called")
	}
	if len(recs) != 0 {
		t.Errorf("recommendation count = %d, want 0", len(recs))
	}
}

func TestRunOnce_FansOutPerUser(t *testing.T) {
	users := &mockUserRepo{
		listIDsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"user-1", "user-2", "user-3"}, nil
		},
	}
	recRepo := &mockRecRepo{}
	collector := &stubCollector{}
	g := newTestGenerator(&mockCourseRepo{}, &mockEventRepo{}, &mockAttendanceRepo{}, recRepo, users, collector)

	if err := g.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if collector.successCount != 3 {
		t.Errorf("success count = %d, want 3", collector.successCount)
	}
	if len(collector.cycleDurations) != 1 {
		t.Errorf("cycle duration recorded %d times, want 1", len(collector.cycleDurations))
	}
	if len(recRepo.replaced) != 3 {
		t.Errorf("replaced user count = %d, want 3", len(recRepo.replaced))
	}
}

func TestRunOnce_UserFailure_RecordsFailureAndContinues(t *testing.T) {
	users := &mockUserRepo{
		listIDsFunc: func(ctx context.Context) ([]string, error) {
			return []string{"user-ok", "user-broken"}, nil
		},
	}
	courses := &mockCourseRepo{
		listFunc: func(ctx context.Context, userID string) ([]*model.Course, error) {
			if userID == "user-broken" {
				return nil, errors.New("db down")
			}
			return nil, nil
		},
	}
	recRepo := &mockRecRepo{}
	collector := &stubCollector{}
	g := newTestGenerator(courses, &mockEventRepo{}, &mockAttendanceRepo{}, recRepo, users, collector)

	if err := g.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if collector.successCount != 1 {
		t.Errorf("success count = %d, want 1", collector.successCount)
	}
	if collector.failureCount != 1 {
		t.Errorf("failure count = %d, want 1", collector.failureCount)
	}
	if _, ok := recRepo.replaced["user-broken"]; ok {
		t.Error("expected no replacement for failed user")
	}
}

func TestRunOnce_ListIDsFailure_ReturnsError(t *testing.T) {
	users := &mockUserRepo{
		listIDsFunc: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("db down")
		},
	}
	g := newTestGenerator(&mockCourseRepo{}, &mockEventRepo{}, &mockAttendanceRepo{}, &mockRecRepo{}, users, &stubCollector{})

	if err := g.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}
