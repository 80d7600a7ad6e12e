// Package model はドメインモデルを定義する。
package model

import "time"

// Course は受講中のコースを表す。
// 日付フィールド（StartDate, EndDate）は "YYYY-MM-DD" 形式の文字列として保持する。
// ProgressはcompletedSections/totalSectionsからサーバー側で再計算される値であり、
// クライアントはサーバーの返す値をそのまま信頼する。
type Course struct {
	ID                string
	UserID            string
	Title             string
	Platform          string
	URL               string
	Progress          int // 0〜100のパーセンテージ
	TotalSections     int
	CompletedSections int
	StartDate         string
	EndDate           string
	ImageURL          string
	ImageData         []byte // サムネイル画像（取得できた場合のみ）
	ImageMime         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CourseInput はコース登録時の入力を表す。IDとProgressはサーバーが採番・計算する。
type CourseInput struct {
	Title             string
	Platform          string
	URL               string
	TotalSections     int
	CompletedSections int
	StartDate         string
	EndDate           string
	ImageURL          string
}
