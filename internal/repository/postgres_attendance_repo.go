package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/manabu/internal/model"
)

// PostgresAttendanceRepo はPostgreSQLを使用した出欠記録リポジトリ。
type PostgresAttendanceRepo struct {
	db *sql.DB
}

// NewPostgresAttendanceRepo はPostgresAttendanceRepoを生成する。
func NewPostgresAttendanceRepo(db *sql.DB) *PostgresAttendanceRepo {
	return &PostgresAttendanceRepo{db: db}
}

// ListByUserID はユーザーの全コースに属する出欠記録を日付昇順で返す。
func (r *PostgresAttendanceRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.course_id, a.date, a.status, a.notes, a.created_at
		 FROM attendance_records a
		 JOIN courses c ON c.id = a.course_id
		 WHERE c.user_id = $1
		 ORDER BY a.date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		record := &model.AttendanceRecord{}
		err := rows.Scan(
			&record.ID, &record.CourseID, &record.Date,
			&record.Status, &record.Notes, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance records: %w", err)
	}

	return records, nil
}

// FindByID は指定IDの出欠記録を取得する。見つからない場合はnilを返す。
func (r *PostgresAttendanceRepo) FindByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	record := &model.AttendanceRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, course_id, date, status, notes, created_at
		 FROM attendance_records WHERE id = $1`,
		id,
	).Scan(
		&record.ID, &record.CourseID, &record.Date,
		&record.Status, &record.Notes, &record.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find attendance record: %w", err)
	}

	return record, nil
}

// Create は出欠記録を作成する。
func (r *PostgresAttendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_records (id, course_id, date, status, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.CourseID, record.Date,
		record.Status, record.Notes, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return nil
}

// UpdateStatus は出欠記録の状態とメモを更新する。
func (r *PostgresAttendanceRepo) UpdateStatus(ctx context.Context, id string, status model.AttendanceStatus, notes string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE attendance_records SET status = $2, notes = $3 WHERE id = $1`,
		id, status, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("attendance record not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ AttendanceRepository = (*PostgresAttendanceRepo)(nil)
