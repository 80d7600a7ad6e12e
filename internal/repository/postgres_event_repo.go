package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/manabu/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したカレンダーイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// ListByUserID はユーザーの全コースに属するイベントを日付昇順で返す。
func (r *PostgresEventRepo) ListByUserID(ctx context.Context, userID string) ([]*model.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.course_id, e.title, e.date, e.time, e.type, e.description, e.created_at
		 FROM events e
		 JOIN courses c ON c.id = e.course_id
		 WHERE c.user_id = $1
		 ORDER BY e.date, e.time`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.CalendarEvent
	for rows.Next() {
		event := &model.CalendarEvent{}
		err := rows.Scan(
			&event.ID, &event.CourseID, &event.Title, &event.Date,
			&event.Time, &event.Type, &event.Description, &event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.CalendarEvent, error) {
	event := &model.CalendarEvent{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, date, time, type, description, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(
		&event.ID, &event.CourseID, &event.Title, &event.Date,
		&event.Time, &event.Type, &event.Description, &event.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}

	return event, nil
}

// Create はイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.CalendarEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, course_id, title, date, time, type, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.CourseID, event.Title, event.Date,
		event.Time, event.Type, event.Description, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのイベントを削除する。
func (r *PostgresEventRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
