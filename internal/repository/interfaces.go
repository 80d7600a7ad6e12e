// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/manabu/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// ListIDs は全ユーザーのIDを返す。
	ListIDs(ctx context.Context) ([]string, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CourseRepository はコースデータの永続化インターフェース。
type CourseRepository interface {
	// ListByUserID はユーザーのコース一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Course, error)

	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Course, error)

	// Create はコースを作成する。
	Create(ctx context.Context, course *model.Course) error

	// UpdateProgress はコースの完了セクション数と進捗率を更新する。
	UpdateProgress(ctx context.Context, id string, completedSections, progress int) error

	// UpdateThumbnail はコースのサムネイル画像データを更新する。
	UpdateThumbnail(ctx context.Context, id string, imageData []byte, imageMime string) error
}

// EventRepository はカレンダーイベントの永続化インターフェース。
type EventRepository interface {
	// ListByUserID はユーザーの全コースに属するイベントを日付昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.CalendarEvent, error)

	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CalendarEvent, error)

	// Create はイベントを作成する。
	Create(ctx context.Context, event *model.CalendarEvent) error

	// DeleteByID は指定IDのイベントを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// AttendanceRepository は出欠記録の永続化インターフェース。
type AttendanceRepository interface {
	// ListByUserID はユーザーの全コースに属する出欠記録を日付昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.AttendanceRecord, error)

	// FindByID は指定IDの出欠記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AttendanceRecord, error)

	// Create は出欠記録を作成する。
	Create(ctx context.Context, record *model.AttendanceRecord) error

	// UpdateStatus は出欠記録の状態とメモを更新する。
	UpdateStatus(ctx context.Context, id string, status model.AttendanceStatus, notes string) error
}

// RecommendationRepository は学習推薦の永続化インターフェース。
type RecommendationRepository interface {
	// ListByUserID はユーザーの推薦一覧を優先度順（high, medium, low）で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.StudyRecommendation, error)

	// ReplaceForUser はユーザーの推薦を同一トランザクションで全件入れ替える。
	ReplaceForUser(ctx context.Context, userID string, recs []*model.StudyRecommendation) error
}

// InsightRepository は週次インサイトの永続化インターフェース。
type InsightRepository interface {
	// ListByUserID はユーザーの週次インサイトを週開始日昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.WeeklyInsight, error)

	// UpsertWeek は指定週のインサイトを冪等にUPSERTする。
	UpsertWeek(ctx context.Context, userID string, insight *model.WeeklyInsight) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
