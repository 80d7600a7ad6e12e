// Package schedule はカレンダーイベントと出欠記録のドメインロジックを提供する。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/manabu/internal/model"
	"github.com/hitoshi/manabu/internal/repository"
)

// CourseFinder はコース所有権確認のインターフェース。
type CourseFinder interface {
	FindOwnedCourse(ctx context.Context, userID, courseID string) (*model.Course, error)
}

// TextSanitizer は自由記述テキストのサニタイズインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Service はイベントと出欠記録に関するビジネスロジックを提供する。
type Service struct {
	eventRepo      repository.EventRepository
	attendanceRepo repository.AttendanceRepository
	courses        CourseFinder
	sanitizer      TextSanitizer
}

// NewService はServiceを生成する。
func NewService(
	eventRepo repository.EventRepository,
	attendanceRepo repository.AttendanceRepository,
	courses CourseFinder,
	sanitizer TextSanitizer,
) *Service {
	return &Service{
		eventRepo:      eventRepo,
		attendanceRepo: attendanceRepo,
		courses:        courses,
		sanitizer:      sanitizer,
	}
}

// ListEvents はユーザーの全コースに属するイベント一覧を返す。
func (s *Service) ListEvents(ctx context.Context, userID string) ([]*model.CalendarEvent, error) {
	events, err := s.eventRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// CreateEvent は新規イベントを登録する。
// 紐づくコースがユーザーの所有でない場合はコース未検出として扱う。
func (s *Service) CreateEvent(ctx context.Context, userID string, input model.EventInput) (*model.CalendarEvent, error) {
	if _, err := s.courses.FindOwnedCourse(ctx, userID, input.CourseID); err != nil {
		return nil, err
	}
	if !model.ValidEventType(input.Type) {
		return nil, model.NewInvalidEventTypeError(string(input.Type))
	}
	if !validDate(input.Date) {
		return nil, model.NewInvalidDateError(input.Date)
	}

	event := &model.CalendarEvent{
		ID:          uuid.New().String(),
		CourseID:    input.CourseID,
		Title:       input.Title,
		Date:        input.Date,
		Time:        input.Time,
		Type:        input.Type,
		Description: s.sanitize(input.Description),
		CreatedAt:   time.Now(),
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	slog.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("course_id", event.CourseID),
		slog.String("type", string(event.Type)),
	)

	return event, nil
}

// DeleteEvent はイベントを削除する。
// 他ユーザーのコースに属するイベントは存在しないものとして扱う。
func (s *Service) DeleteEvent(ctx context.Context, userID, eventID string) error {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to find event: %w", err)
	}
	if event == nil {
		return model.NewEventNotFoundError(eventID)
	}
	if _, err := s.courses.FindOwnedCourse(ctx, userID, event.CourseID); err != nil {
		return model.NewEventNotFoundError(eventID)
	}

	if err := s.eventRepo.DeleteByID(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	slog.Info("event deleted", slog.String("event_id", eventID))
	return nil
}

// ListAttendance はユーザーの全コースに属する出欠記録一覧を返す。
func (s *Service) ListAttendance(ctx context.Context, userID string) ([]*model.AttendanceRecord, error) {
	records, err := s.attendanceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	return records, nil
}

// CreateAttendance は新規出欠記録を登録する。
func (s *Service) CreateAttendance(ctx context.Context, userID string, input model.AttendanceInput) (*model.AttendanceRecord, error) {
	if _, err := s.courses.FindOwnedCourse(ctx, userID, input.CourseID); err != nil {
		return nil, err
	}
	if !model.ValidAttendanceStatus(input.Status) {
		return nil, model.NewInvalidStatusError(string(input.Status))
	}
	if !validDate(input.Date) {
		return nil, model.NewInvalidDateError(input.Date)
	}

	record := &model.AttendanceRecord{
		ID:        uuid.New().String(),
		CourseID:  input.CourseID,
		Date:      input.Date,
		Status:    input.Status,
		Notes:     s.sanitize(input.Notes),
		CreatedAt: time.Now(),
	}

	if err := s.attendanceRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create attendance record: %w", err)
	}

	slog.Info("attendance recorded",
		slog.String("record_id", record.ID),
		slog.String("course_id", record.CourseID),
		slog.String("status", string(record.Status)),
	)

	return record, nil
}

// UpdateAttendance は出欠記録の状態とメモを更新する。
// 他ユーザーのコースに属する記録は存在しないものとして扱う。
func (s *Service) UpdateAttendance(ctx context.Context, userID, recordID string, status model.AttendanceStatus, notes string) (*model.AttendanceRecord, error) {
	record, err := s.attendanceRepo.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to find attendance record: %w", err)
	}
	if record == nil {
		return nil, model.NewRecordNotFoundError(recordID)
	}
	if _, err := s.courses.FindOwnedCourse(ctx, userID, record.CourseID); err != nil {
		return nil, model.NewRecordNotFoundError(recordID)
	}

	if !model.ValidAttendanceStatus(status) {
		return nil, model.NewInvalidStatusError(string(status))
	}

	sanitized := s.sanitize(notes)
	if err := s.attendanceRepo.UpdateStatus(ctx, recordID, status, sanitized); err != nil {
		return nil, fmt.Errorf("failed to update attendance record: %w", err)
	}

	record.Status = status
	record.Notes = sanitized

	slog.Info("attendance updated",
		slog.String("record_id", recordID),
		slog.String("status", string(status)),
	)

	return record, nil
}

// sanitize はサニタイザが設定されていればテキストをサニタイズする。
func (s *Service) sanitize(raw string) string {
	if s.sanitizer == nil {
		return raw
	}
	return s.sanitizer.Sanitize(raw)
}

// validDate は"YYYY-MM-DD"形式の日付かを検証する。
func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}
