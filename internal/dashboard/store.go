// Package dashboard はダッシュボードのインメモリストアを提供する。
// 認証後に5つのコレクションを一括取得し、各操作の成功時のみローカルキャッシュを更新する。
package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/manabu/internal/model"
)

// 操作別の固定エラーメッセージ。失敗はストア境界を越えて伝播しない。
const (
	msgLoadFailed             = "Failed to load data. Please try again later."
	msgAddCourseFailed        = "Failed to add course. Please try again."
	msgUpdateProgressFailed   = "Failed to update progress. Please try again."
	msgAddEventFailed         = "Failed to add event. Please try again."
	msgRemoveEventFailed      = "Failed to remove event. Please try again."
	msgAddAttendanceFailed    = "Failed to record attendance. Please try again."
	msgUpdateAttendanceFailed = "Failed to update attendance. Please try again."
)

// ResourceClient はストアが利用するAPIクライアントのインターフェース。
type ResourceClient interface {
	ListCourses(ctx context.Context) ([]*model.Course, error)
	CreateCourse(ctx context.Context, input model.CourseInput) (*model.Course, error)
	UpdateCourseProgress(ctx context.Context, courseID string, completedSections int) (*model.Course, error)
	ListEvents(ctx context.Context) ([]*model.CalendarEvent, error)
	CreateEvent(ctx context.Context, input model.EventInput) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListAttendance(ctx context.Context) ([]*model.AttendanceRecord, error)
	CreateAttendance(ctx context.Context, input model.AttendanceInput) (*model.AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, recordID string, status model.AttendanceStatus, notes string) (*model.AttendanceRecord, error)
	ListRecommendations(ctx context.Context) ([]*model.StudyRecommendation, error)
	ListInsights(ctx context.Context) ([]*model.WeeklyInsight, error)
}

// Snapshot はストアの現在の状態のコピー。
type Snapshot struct {
	Courses         []*model.Course
	Events          []*model.CalendarEvent
	Attendance      []*model.AttendanceRecord
	Recommendations []*model.StudyRecommendation
	Insights        []*model.WeeklyInsight
	Loading         bool
	Err             string
}

// Store はセッション中の5コレクションを保持するインメモリキャッシュ。
type Store struct {
	client ResourceClient
	logger *slog.Logger

	mu              sync.RWMutex
	courses         []*model.Course
	events          []*model.CalendarEvent
	attendance      []*model.AttendanceRecord
	recommendations []*model.StudyRecommendation
	insights        []*model.WeeklyInsight
	loading         bool
	errMsg          string

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

// NewStore はStoreの新しいインスタンスを生成する。コレクションは空で始まる。
func NewStore(client ResourceClient, logger *slog.Logger) *Store {
	return &Store{
		client:      client,
		logger:      logger,
		subscribers: make(map[int]func()),
	}
}

// Subscribe は状態変更の通知を受けるコールバックを登録し、解除関数を返す。
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Snapshot は現在の状態のコピーを返す。返り値のスライスは共有されない。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Courses:         make([]*model.Course, len(s.courses)),
		Events:          make([]*model.CalendarEvent, len(s.events)),
		Attendance:      make([]*model.AttendanceRecord, len(s.attendance)),
		Recommendations: make([]*model.StudyRecommendation, len(s.recommendations)),
		Insights:        make([]*model.WeeklyInsight, len(s.insights)),
		Loading:         s.loading,
		Err:             s.errMsg,
	}
	copy(snap.Courses, s.courses)
	copy(snap.Events, s.events)
	copy(snap.Attendance, s.attendance)
	copy(snap.Recommendations, s.recommendations)
	copy(snap.Insights, s.insights)
	return snap
}

// Load は5つのコレクションを並行取得する。認証済みの遷移ごとに一度呼ぶ。
// いずれかの取得が失敗した場合は部分的な結果を一切適用しない。
func (s *Store) Load(ctx context.Context, authenticated bool) {
	if !authenticated {
		s.Reset()
		return
	}

	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()

	var (
		courses         []*model.Course
		events          []*model.CalendarEvent
		attendance      []*model.AttendanceRecord
		recommendations []*model.StudyRecommendation
		insights        []*model.WeeklyInsight
	)
	errs := make([]error, 5)

	var wg sync.WaitGroup
	wg.Add(5)
	go func() {
		defer wg.Done()
		courses, errs[0] = s.client.ListCourses(ctx)
	}()
	go func() {
		defer wg.Done()
		events, errs[1] = s.client.ListEvents(ctx)
	}()
	go func() {
		defer wg.Done()
		attendance, errs[2] = s.client.ListAttendance(ctx)
	}()
	go func() {
		defer wg.Done()
		recommendations, errs[3] = s.client.ListRecommendations(ctx)
	}()
	go func() {
		defer wg.Done()
		insights, errs[4] = s.client.ListInsights(ctx)
	}()
	wg.Wait()

	s.mu.Lock()
	s.loading = false
	for _, err := range errs {
		if err != nil {
			s.errMsg = msgLoadFailed
			s.mu.Unlock()
			s.logger.Error("ダッシュボードデータの読み込みに失敗しました", slog.String("error", err.Error()))
			s.notify()
			return
		}
	}
	s.courses = courses
	s.events = events
	s.attendance = attendance
	s.recommendations = recommendations
	s.insights = insights
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// Reset はコレクションとエラーを破棄する。ログアウト時に呼ぶ。
func (s *Store) Reset() {
	s.mu.Lock()
	s.courses = nil
	s.events = nil
	s.attendance = nil
	s.recommendations = nil
	s.insights = nil
	s.loading = false
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// AddCourse はコースを作成し、成功時のみサーバー返却値をキャッシュに追加する。
func (s *Store) AddCourse(ctx context.Context, input model.CourseInput) {
	course, err := s.client.CreateCourse(ctx, input)
	if err != nil {
		s.setError(msgAddCourseFailed, "コースの追加に失敗しました", err)
		return
	}

	s.mu.Lock()
	s.courses = append(s.courses, course)
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// UpdateCourseProgress は完了セクション数を更新する。
// 進捗率はサーバーが再計算した値で置き換える。失敗時はキャッシュを変更しない。
func (s *Store) UpdateCourseProgress(ctx context.Context, courseID string, completedSections int) {
	updated, err := s.client.UpdateCourseProgress(ctx, courseID, completedSections)
	if err != nil {
		s.setError(msgUpdateProgressFailed, "進捗の更新に失敗しました", err)
		return
	}

	s.mu.Lock()
	for i, c := range s.courses {
		if c.ID == updated.ID {
			s.courses[i] = updated
			break
		}
	}
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// AddEvent はイベントを作成し、成功時のみキャッシュに追加する。
func (s *Store) AddEvent(ctx context.Context, input model.EventInput) {
	event, err := s.client.CreateEvent(ctx, input)
	if err != nil {
		s.setError(msgAddEventFailed, "イベントの追加に失敗しました", err)
		return
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// RemoveEvent はイベントを削除する。サーバーが削除を確認した後にキャッシュから除く。
// キャッシュに存在しないIDはエラーにしない。
func (s *Store) RemoveEvent(ctx context.Context, eventID string) {
	if err := s.client.DeleteEvent(ctx, eventID); err != nil {
		s.setError(msgRemoveEventFailed, "イベントの削除に失敗しました", err)
		return
	}

	s.mu.Lock()
	for i, e := range s.events {
		if e.ID == eventID {
			s.events = append(s.events[:i], s.events[i+1:]...)
			break
		}
	}
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// AddAttendanceRecord は出欠記録を作成し、成功時のみキャッシュに追加する。
func (s *Store) AddAttendanceRecord(ctx context.Context, input model.AttendanceInput) {
	record, err := s.client.CreateAttendance(ctx, input)
	if err != nil {
		s.setError(msgAddAttendanceFailed, "出欠記録の追加に失敗しました", err)
		return
	}

	s.mu.Lock()
	s.attendance = append(s.attendance, record)
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// UpdateAttendanceRecord は出欠記録の状態とメモを更新する。
func (s *Store) UpdateAttendanceRecord(ctx context.Context, recordID string, status model.AttendanceStatus, notes string) {
	updated, err := s.client.UpdateAttendance(ctx, recordID, status, notes)
	if err != nil {
		s.setError(msgUpdateAttendanceFailed, "出欠記録の更新に失敗しました", err)
		return
	}

	s.mu.Lock()
	for i, r := range s.attendance {
		if r.ID == updated.ID {
			s.attendance[i] = updated
			break
		}
	}
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// FindAttendance は指定コースと日付の既存記録を返す。
// 同一コース・同一日付の重複登録を避けるため、呼び出し側が書き込み前に照会する。
func (s *Store) FindAttendance(courseID, date string) (*model.AttendanceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.attendance {
		if r.CourseID == courseID && r.Date == date {
			return r, true
		}
	}
	return nil, false
}

// Err は現在のエラーメッセージを返す。空文字列はエラーなしを意味する。
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Loading は初期読み込みが進行中かどうかを返す。
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) setError(msg, logMsg string, err error) {
	s.logger.Error(logMsg, slog.String("error", err.Error()))

	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.notify()
}
