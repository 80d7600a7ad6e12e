// Package model はドメインモデルを定義する。
package model

import "time"

// CalendarEvent はコースに紐づくカレンダーイベントを表す。
// Timeは時刻として検証しない自由入力文字列。
type CalendarEvent struct {
	ID          string
	CourseID    string
	Title       string
	Date        string // "YYYY-MM-DD"
	Time        string
	Type        EventType
	Description string
	CreatedAt   time.Time
}

// EventType はカレンダーイベントの種別を表す。
type EventType string

const (
	// EventTypeDeadline は課題などの締め切り。
	EventTypeDeadline EventType = "deadline"
	// EventTypeLecture は講義。
	EventTypeLecture EventType = "lecture"
	// EventTypeExam は試験。
	EventTypeExam EventType = "exam"
	// EventTypeAssignment は課題。
	EventTypeAssignment EventType = "assignment"
)

// ValidEventType はイベント種別が定義済みかを判定する。
func ValidEventType(t EventType) bool {
	switch t {
	case EventTypeDeadline, EventTypeLecture, EventTypeExam, EventTypeAssignment:
		return true
	default:
		return false
	}
}

// EventInput はイベント登録時の入力を表す。IDはサーバーが採番する。
type EventInput struct {
	CourseID    string
	Title       string
	Date        string
	Time        string
	Type        EventType
	Description string
}
