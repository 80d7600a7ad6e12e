// Package model はドメインモデルを定義する。
package model

import "time"

// AttendanceRecord はコースの出欠記録を表す。
// 「1コース・1日付につき1レコード」はデータ層では強制せず、
// 呼び出し側が既存レコードの有無を確認してから作成/更新を選択する。
type AttendanceRecord struct {
	ID        string
	CourseID  string
	Date      string // "YYYY-MM-DD"
	Status    AttendanceStatus
	Notes     string
	CreatedAt time.Time
}

// AttendanceStatus は出欠状態を表す。
type AttendanceStatus string

const (
	// AttendancePresent は出席。
	AttendancePresent AttendanceStatus = "present"
	// AttendanceAbsent は欠席。
	AttendanceAbsent AttendanceStatus = "absent"
	// AttendanceExcused は公欠。
	AttendanceExcused AttendanceStatus = "excused"
)

// ValidAttendanceStatus は出欠状態が定義済みかを判定する。
func ValidAttendanceStatus(s AttendanceStatus) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceExcused:
		return true
	default:
		return false
	}
}

// AttendanceInput は出欠記録作成時の入力を表す。IDはサーバーが採番する。
type AttendanceInput struct {
	CourseID string
	Date     string
	Status   AttendanceStatus
	Notes    string
}
