package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/manabu/internal/model"
)

// PostgresRecommendationRepo はPostgreSQLを使用した学習推薦リポジトリ。
type PostgresRecommendationRepo struct {
	db *sql.DB
}

// NewPostgresRecommendationRepo はPostgresRecommendationRepoを生成する。
func NewPostgresRecommendationRepo(db *sql.DB) *PostgresRecommendationRepo {
	return &PostgresRecommendationRepo{db: db}
}

// ListByUserID はユーザーの推薦一覧を優先度順（high, medium, low）で返す。
func (r *PostgresRecommendationRepo) ListByUserID(ctx context.Context, userID string) ([]*model.StudyRecommendation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, course_id, title, description, priority, created_at
		 FROM recommendations
		 WHERE user_id = $1
		 ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*model.StudyRecommendation
	for rows.Next() {
		rec := &model.StudyRecommendation{}
		var courseID sql.NullString
		err := rows.Scan(
			&rec.ID, &courseID, &rec.Title,
			&rec.Description, &rec.Priority, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		rec.CourseID = nullStringValue(courseID)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendations: %w", err)
	}

	return recs, nil
}

// ReplaceForUser はユーザーの推薦を同一トランザクションで全件入れ替える。
func (r *PostgresRecommendationRepo) ReplaceForUser(ctx context.Context, userID string, recs []*model.StudyRecommendation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM recommendations WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old recommendations: %w", err)
	}

	for _, rec := range recs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recommendations (id, user_id, course_id, title, description, priority, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.ID, userID, nullString(rec.CourseID),
			rec.Title, rec.Description, rec.Priority, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ RecommendationRepository = (*PostgresRecommendationRepo)(nil)
