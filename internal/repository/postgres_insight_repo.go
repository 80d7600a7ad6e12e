package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/manabu/internal/model"
)

// PostgresInsightRepo はPostgreSQLを使用した週次インサイトリポジトリ。
type PostgresInsightRepo struct {
	db *sql.DB
}

// NewPostgresInsightRepo はPostgresInsightRepoを生成する。
func NewPostgresInsightRepo(db *sql.DB) *PostgresInsightRepo {
	return &PostgresInsightRepo{db: db}
}

// ListByUserID はユーザーの週次インサイトを週開始日昇順で返す。
func (r *PostgresInsightRepo) ListByUserID(ctx context.Context, userID string) ([]*model.WeeklyInsight, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT week_starting, hours_studied, courses_progressed, attendance_rate, upcoming_deadlines
		 FROM weekly_insights
		 WHERE user_id = $1
		 ORDER BY week_starting`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly insights: %w", err)
	}
	defer rows.Close()

	var insights []*model.WeeklyInsight
	for rows.Next() {
		insight := &model.WeeklyInsight{}
		err := rows.Scan(
			&insight.WeekStarting, &insight.HoursStudied,
			&insight.CoursesProgressed, &insight.AttendanceRate, &insight.UpcomingDeadlines,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weekly insight: %w", err)
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weekly insights: %w", err)
	}

	return insights, nil
}

// UpsertWeek は指定週のインサイトを冪等にUPSERTする。
func (r *PostgresInsightRepo) UpsertWeek(ctx context.Context, userID string, insight *model.WeeklyInsight) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weekly_insights (user_id, week_starting, hours_studied, courses_progressed, attendance_rate, upcoming_deadlines)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, week_starting) DO UPDATE SET
			hours_studied = EXCLUDED.hours_studied,
			courses_progressed = EXCLUDED.courses_progressed,
			attendance_rate = EXCLUDED.attendance_rate,
			upcoming_deadlines = EXCLUDED.upcoming_deadlines`,
		userID, insight.WeekStarting, insight.HoursStudied,
		insight.CoursesProgressed, insight.AttendanceRate, insight.UpcomingDeadlines,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly insight: %w", err)
	}
	return nil
}

// compile-time interface check
var _ InsightRepository = (*PostgresInsightRepo)(nil)
