package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/manabu/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

const courseColumns = `id, user_id, title, platform, url, progress, total_sections, completed_sections,
	 start_date, end_date, image_url, image_data, image_mime, created_at, updated_at`

// ListByUserID はユーザーのコース一覧を作成日時昇順で返す。
func (r *PostgresCourseRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	return courses, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id string) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	)

	course, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return course, nil
}

// Create はコースを作成する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (id, user_id, title, platform, url, progress, total_sections, completed_sections,
		 start_date, end_date, image_url, image_data, image_mime, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		course.ID, course.UserID, course.Title, course.Platform, course.URL,
		course.Progress, course.TotalSections, course.CompletedSections,
		course.StartDate, course.EndDate, course.ImageURL,
		course.ImageData, nullString(course.ImageMime),
		course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

// UpdateProgress はコースの完了セクション数と進捗率を更新する。
func (r *PostgresCourseRepo) UpdateProgress(ctx context.Context, id string, completedSections, progress int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE courses SET completed_sections = $2, progress = $3, updated_at = now() WHERE id = $1`,
		id, completedSections, progress,
	)
	if err != nil {
		return fmt.Errorf("failed to update course progress: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("course not found: %s", id)
	}
	return nil
}

// UpdateThumbnail はコースのサムネイル画像データを更新する。
func (r *PostgresCourseRepo) UpdateThumbnail(ctx context.Context, id string, imageData []byte, imageMime string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE courses SET image_data = $2, image_mime = $3, updated_at = now() WHERE id = $1`,
		id, imageData, nullString(imageMime),
	)
	if err != nil {
		return fmt.Errorf("failed to update course thumbnail: %w", err)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*model.Course, error) {
	course := &model.Course{}
	var imageMime sql.NullString
	err := row.Scan(
		&course.ID, &course.UserID, &course.Title, &course.Platform, &course.URL,
		&course.Progress, &course.TotalSections, &course.CompletedSections,
		&course.StartDate, &course.EndDate, &course.ImageURL,
		&course.ImageData, &imageMime,
		&course.CreatedAt, &course.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}
	course.ImageMime = nullStringValue(imageMime)
	return course, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNullStringから値を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
