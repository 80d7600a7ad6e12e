package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/manabu/internal/auth"
	"github.com/hitoshi/manabu/internal/config"
	"github.com/hitoshi/manabu/internal/course"
	"github.com/hitoshi/manabu/internal/database"
	"github.com/hitoshi/manabu/internal/model"
	"github.com/hitoshi/manabu/internal/repository"
)

const (
	seedUsername = "demo"
	seedEmail    = "demo@example.com"
	seedPassword = "demo-password"
)

// runSeed はデモユーザーとデモデータを投入する。
// デモユーザーに既にコースがある場合は何もしない（冪等）。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx := context.Background()

	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	attendanceRepo := repository.NewPostgresAttendanceRepo(db)
	recRepo := repository.NewPostgresRecommendationRepo(db)
	insightRepo := repository.NewPostgresInsightRepo(db)

	// 1. デモユーザーの確保
	user, err := userRepo.FindByEmail(ctx, seedEmail)
	if err != nil {
		return fmt.Errorf("failed to look up demo user: %w", err)
	}
	if user == nil {
		authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			BcryptCost:    cfg.BcryptCost,
		})
		user, _, err = authService.Register(ctx, seedUsername, seedEmail, seedPassword)
		if err != nil {
			return fmt.Errorf("failed to register demo user: %w", err)
		}
		slog.Info("demo user created",
			slog.String("email", seedEmail),
			slog.String("user_id", user.ID),
		)
	}

	// 2. 冪等チェック
	existing, err := courseRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list demo courses: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("demo data already present, skipping seed",
			slog.Int("course_count", len(existing)),
		)
		return nil
	}

	now := time.Now()

	// 3. コース
	courses := []*model.Course{
		newSeedCourse(user.ID, now, "React - The Complete Guide", "Udemy",
			"https://www.udemy.com/course/react-the-complete-guide/", 20, 13, -30, 60),
		newSeedCourse(user.ID, now, "Machine Learning Specialization", "Coursera",
			"https://www.coursera.org/specializations/machine-learning", 15, 6, -45, 90),
		newSeedCourse(user.ID, now, "CS50: Introduction to Computer Science", "edX",
			"https://www.edx.org/course/cs50s-introduction-to-computer-science", 10, 8, -60, 15),
		newSeedCourse(user.ID, now, "Full Stack Web Development", "Udacity",
			"https://www.udacity.com/course/full-stack-web-developer-nanodegree--nd0044", 12, 3, -15, 120),
	}
	imageURLs := []string{
		"https://images.unsplash.com/photo-1633356122544-f134324a6cee?ixlib=rb-1.2.1&auto=format&fit=crop&w=800&q=80",
		"https://images.unsplash.com/photo-1620712943543-bcc4688e7485?ixlib=rb-1.2.1&auto=format&fit=crop&w=800&q=80",
		"https://images.unsplash.com/photo-1517694712202-14dd9538aa97?ixlib=rb-1.2.1&auto=format&fit=crop&w=800&q=80",
		"https://images.unsplash.com/photo-1547658719-da2b51169166?ixlib=rb-1.2.1&auto=format&fit=crop&w=800&q=80",
	}
	for i, c := range courses {
		c.ImageURL = imageURLs[i]
		if err := courseRepo.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to seed course %q: %w", c.Title, err)
		}
	}

	// 4. イベント
	events := []*model.CalendarEvent{
		newSeedEvent(courses[0].ID, now, "React Final Project Due", 7, "23:59",
			model.EventTypeDeadline, "Submit the final project for React course"),
		newSeedEvent(courses[1].ID, now, "Machine Learning Quiz", 3, "14:00",
			model.EventTypeExam, "Online quiz covering neural networks"),
		newSeedEvent(courses[2].ID, now, "CS50 Lecture", 1, "10:00",
			model.EventTypeLecture, "Live lecture on algorithms"),
		newSeedEvent(courses[3].ID, now, "Web Dev Assignment", 5, "23:59",
			model.EventTypeAssignment, "Database integration assignment"),
		newSeedEvent(courses[2].ID, now, "CS50 Final Exam", 14, "15:00",
			model.EventTypeExam, "Comprehensive final exam"),
	}
	for _, e := range events {
		if err := eventRepo.Create(ctx, e); err != nil {
			return fmt.Errorf("failed to seed event %q: %w", e.Title, err)
		}
	}

	// 5. 出欠記録
	records := []*model.AttendanceRecord{
		newSeedAttendance(courses[0].ID, now, -7, model.AttendancePresent, "Covered React hooks in detail"),
		newSeedAttendance(courses[0].ID, now, -5, model.AttendancePresent, "Project workshop session"),
		newSeedAttendance(courses[1].ID, now, -6, model.AttendanceAbsent, "Missed due to doctor appointment"),
		newSeedAttendance(courses[2].ID, now, -4, model.AttendancePresent, "Data structures lecture"),
		newSeedAttendance(courses[2].ID, now, -2, model.AttendanceExcused, "Excused absence - family emergency"),
		newSeedAttendance(courses[3].ID, now, -3, model.AttendancePresent, "Frontend frameworks overview"),
	}
	for _, r := range records {
		if err := attendanceRepo.Create(ctx, r); err != nil {
			return fmt.Errorf("failed to seed attendance record: %w", err)
		}
	}

	// 6. 推薦
	recs := []*model.StudyRecommendation{
		newSeedRecommendation(courses[1].ID, model.PriorityHigh, "Focus on Machine Learning",
			"You're falling behind on the ML course. Consider dedicating more time to catch up before the upcoming quiz.", now),
		newSeedRecommendation(courses[2].ID, model.PriorityHigh, "Prepare for CS50 Final",
			"The CS50 final exam is in two weeks. Start reviewing previous materials and practice exercises.", now),
		newSeedRecommendation(courses[0].ID, model.PriorityMedium, "Complete React Project",
			"Your React project deadline is approaching. Make sure to allocate sufficient time for testing and refinement.", now),
		newSeedRecommendation(courses[3].ID, model.PriorityLow, "Explore Additional Web Dev Resources",
			"Consider checking out supplementary materials on database design to strengthen your understanding.", now),
	}
	if err := recRepo.ReplaceForUser(ctx, user.ID, recs); err != nil {
		return fmt.Errorf("failed to seed recommendations: %w", err)
	}

	// 7. 週次インサイト
	insights := []*model.WeeklyInsight{
		{WeekStarting: relDate(now, -28), HoursStudied: 12, CoursesProgressed: 2, AttendanceRate: 80, UpcomingDeadlines: 2},
		{WeekStarting: relDate(now, -21), HoursStudied: 20, CoursesProgressed: 4, AttendanceRate: 90, UpcomingDeadlines: 3},
		{WeekStarting: relDate(now, -14), HoursStudied: 15, CoursesProgressed: 2, AttendanceRate: 75, UpcomingDeadlines: 1},
		{WeekStarting: relDate(now, -7), HoursStudied: 18, CoursesProgressed: 3, AttendanceRate: 85, UpcomingDeadlines: 2},
	}
	for _, in := range insights {
		if err := insightRepo.UpsertWeek(ctx, user.ID, in); err != nil {
			return fmt.Errorf("failed to seed insight for week %s: %w", in.WeekStarting, err)
		}
	}

	slog.Info("database seeded successfully",
		slog.Int("courses", len(courses)),
		slog.Int("events", len(events)),
		slog.Int("attendance_records", len(records)),
		slog.Int("recommendations", len(recs)),
		slog.Int("insights", len(insights)),
	)
	return nil
}

// relDate は基準時刻からの相対日数をYYYY-MM-DD形式で返す。
func relDate(now time.Time, days int) string {
	return now.AddDate(0, 0, days).Format("2006-01-02")
}

func newSeedCourse(userID string, now time.Time, title, platform, url string, total, completed, startOffset, endOffset int) *model.Course {
	return &model.Course{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             title,
		Platform:          platform,
		URL:               url,
		Progress:          course.ComputeProgress(completed, total),
		TotalSections:     total,
		CompletedSections: completed,
		StartDate:         relDate(now, startOffset),
		EndDate:           relDate(now, endOffset),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func newSeedEvent(courseID string, now time.Time, title string, offset int, timeOfDay string, eventType model.EventType, description string) *model.CalendarEvent {
	return &model.CalendarEvent{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       title,
		Date:        relDate(now, offset),
		Time:        timeOfDay,
		Type:        eventType,
		Description: description,
		CreatedAt:   now,
	}
}

func newSeedAttendance(courseID string, now time.Time, offset int, status model.AttendanceStatus, notes string) *model.AttendanceRecord {
	return &model.AttendanceRecord{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Date:      relDate(now, offset),
		Status:    status,
		Notes:     notes,
		CreatedAt: now,
	}
}

func newSeedRecommendation(courseID string, priority model.Priority, title, description string, now time.Time) *model.StudyRecommendation {
	return &model.StudyRecommendation{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   now,
	}
}
