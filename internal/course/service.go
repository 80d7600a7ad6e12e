// Package course はコース管理のドメインロジックを提供する。
package course

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/manabu/internal/model"
	"github.com/hitoshi/manabu/internal/repository"
)

// URLValidator はコースURL検証のインターフェース。
// security.URLGuardServiceを抽象化してテスタビリティを向上させる。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ThumbnailFetcher はサムネイル取得のインターフェース。
type ThumbnailFetcher interface {
	FetchThumbnail(ctx context.Context, imageURL string) (data []byte, mimeType string, err error)
	FetchSiteIcon(ctx context.Context, siteURL string) (data []byte, mimeType string, err error)
}

// Service はコースに関するビジネスロジックを提供する。
type Service struct {
	courseRepo repository.CourseRepository
	urlGuard   URLValidator
	thumbnails ThumbnailFetcher
}

// NewService はServiceを生成する。
// urlGuardとthumbnailsはnil許容（テスト用途）。
func NewService(courseRepo repository.CourseRepository, urlGuard URLValidator, thumbnails ThumbnailFetcher) *Service {
	return &Service{
		courseRepo: courseRepo,
		urlGuard:   urlGuard,
		thumbnails: thumbnails,
	}
}

// ListCourses はユーザーのコース一覧を返す。
func (s *Service) ListCourses(ctx context.Context, userID string) ([]*model.Course, error) {
	courses, err := s.courseRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// CreateCourse は新規コースを登録する。
// 進捗率はcompletedSections/totalSectionsからサーバー側で計算される。
// imageUrlが指定されている場合はサムネイル取得を試行し、
// 未指定の場合はコースURLからサイトアイコンの検出を試行する（いずれも失敗しても登録は成功する）。
func (s *Service) CreateCourse(ctx context.Context, userID string, input model.CourseInput) (*model.Course, error) {
	if err := validateSections(input.TotalSections, input.CompletedSections); err != nil {
		return nil, err
	}
	if !validDate(input.StartDate) {
		return nil, model.NewInvalidDateError(input.StartDate)
	}
	if input.EndDate != "" && !validDate(input.EndDate) {
		return nil, model.NewInvalidDateError(input.EndDate)
	}
	if input.URL != "" && s.urlGuard != nil {
		if err := s.urlGuard.ValidateURL(input.URL); err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
	}
	if input.ImageURL != "" && s.urlGuard != nil {
		if err := s.urlGuard.ValidateURL(input.ImageURL); err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
	}

	now := time.Now()
	course := &model.Course{
		ID:                uuid.New().String(),
		UserID:            userID,
		Title:             input.Title,
		Platform:          input.Platform,
		URL:               input.URL,
		Progress:          ComputeProgress(input.CompletedSections, input.TotalSections),
		TotalSections:     input.TotalSections,
		CompletedSections: input.CompletedSections,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		ImageURL:          input.ImageURL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// サムネイル取得は表示補助であり、失敗してもコース登録は成功させる
	if input.ImageURL != "" && s.thumbnails != nil {
		data, mimeType, err := s.thumbnails.FetchThumbnail(ctx, input.ImageURL)
		if err != nil {
			slog.Warn("thumbnail fetch failed", "course_title", input.Title, "error", err)
		} else {
			course.ImageData = data
			course.ImageMime = mimeType
		}
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	// imageUrl未指定の場合はコースURLからサイトアイコンを補完する
	if input.ImageURL == "" && input.URL != "" && s.thumbnails != nil {
		s.fetchAndSaveSiteIcon(ctx, course)
	}

	slog.Info("course created",
		slog.String("course_id", course.ID),
		slog.String("user_id", userID),
		slog.Int("total_sections", course.TotalSections),
	)

	return course, nil
}

// UpdateProgress はコースの完了セクション数を更新し、進捗率を再計算する。
// 他ユーザーのコースは存在しないものとして扱う。
func (s *Service) UpdateProgress(ctx context.Context, userID, courseID string, completedSections int) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	if course == nil || course.UserID != userID {
		return nil, model.NewCourseNotFoundError(courseID)
	}

	if completedSections < 0 || completedSections > course.TotalSections {
		return nil, model.NewInvalidSectionsError(course.TotalSections, completedSections)
	}

	progress := ComputeProgress(completedSections, course.TotalSections)
	if err := s.courseRepo.UpdateProgress(ctx, courseID, completedSections, progress); err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	course.CompletedSections = completedSections
	course.Progress = progress
	course.UpdatedAt = time.Now()

	slog.Info("course progress updated",
		slog.String("course_id", courseID),
		slog.Int("completed_sections", completedSections),
		slog.Int("progress", progress),
	)

	return course, nil
}

// fetchAndSaveSiteIcon はコースURLからサイトアイコンを取得して保存する。
// 取得失敗時はログ出力のみで、エラーを返さない。
func (s *Service) fetchAndSaveSiteIcon(ctx context.Context, course *model.Course) {
	data, mimeType, err := s.thumbnails.FetchSiteIcon(ctx, course.URL)
	if err != nil {
		slog.Warn("site icon fetch failed", "course_id", course.ID, "url", course.URL, "error", err)
		return
	}
	if len(data) == 0 {
		slog.Info("site icon not found", "course_id", course.ID, "url", course.URL)
		return
	}

	if err := s.courseRepo.UpdateThumbnail(ctx, course.ID, data, mimeType); err != nil {
		slog.Warn("site icon save failed", "course_id", course.ID, "error", err)
		return
	}

	course.ImageData = data
	course.ImageMime = mimeType
	slog.Info("site icon saved",
		slog.String("course_id", course.ID),
		slog.String("mime_type", mimeType),
		slog.Int("size", len(data)),
	)
}

// FindOwnedCourse は指定ユーザーが所有するコースを取得する。
// 他ユーザーのコースは存在しないものとして扱う。
func (s *Service) FindOwnedCourse(ctx context.Context, userID, courseID string) (*model.Course, error) {
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	if course == nil || course.UserID != userID {
		return nil, model.NewCourseNotFoundError(courseID)
	}
	return course, nil
}

// ComputeProgress は完了セクション数と総セクション数から進捗率（0〜100）を計算する。
// 四捨五入（0.5は0から遠い方向へ丸め）。総数が0以下の場合は0を返す。
func ComputeProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// validateSections はセクション数の妥当性を検証する。
func validateSections(total, completed int) error {
	if total < 1 || completed < 0 || completed > total {
		return model.NewInvalidSectionsError(total, completed)
	}
	return nil
}

// validDate は"YYYY-MM-DD"形式の日付かを検証する。
func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}
