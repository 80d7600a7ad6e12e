// Package model はドメインモデルを定義する。
package model

import "time"

// StudyRecommendation は学習レコメンデーションを表す。
// クライアントからは読み取り専用で、バックグラウンドの生成ジョブが書き込む。
type StudyRecommendation struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	Priority    Priority
	CreatedAt   time.Time
}

// Priority はレコメンデーションの優先度を表す。
type Priority string

const (
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "high"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "medium"
	// PriorityLow は低優先度。
	PriorityLow Priority = "low"
)

// WeeklyInsight は週次の学習サマリーを表す。
// WeekStartingはISO週の開始日（"YYYY-MM-DD"）。1ユーザー・1週につき1件。
type WeeklyInsight struct {
	WeekStarting      string
	HoursStudied      float64
	CoursesProgressed int
	AttendanceRate    int // 0〜100
	UpcomingDeadlines int
}
