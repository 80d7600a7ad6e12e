// Package client はManabu APIのHTTPクライアントを提供する。
// セッションCookieをcookiejarで保持し、ログイン後のAPI呼び出しに自動で付与する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/hitoshi/manabu/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client はManabu APIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// セッションCookie保持のためcookiejarを内蔵する。
func NewClient(baseURL string, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookiejarの生成に失敗しました: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
		logger: logger,
	}, nil
}

// --- ワイヤーフォーマット ---

type userWire struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

type courseWire struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Platform          string `json:"platform"`
	URL               string `json:"url"`
	Progress          int    `json:"progress"`
	TotalSections     int    `json:"totalSections"`
	CompletedSections int    `json:"completedSections"`
	StartDate         string `json:"startDate"`
	EndDate           string `json:"endDate"`
	ImageURL          string `json:"imageUrl"`
}

type eventWire struct {
	ID          string `json:"id"`
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type attendanceWire struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Notes    string `json:"notes"`
}

type recommendationWire struct {
	ID          string `json:"id"`
	CourseID    string `json:"courseId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	CreatedAt   string `json:"createdAt"`
}

type insightWire struct {
	WeekStarting      string  `json:"weekStarting"`
	HoursStudied      float64 `json:"hoursStudied"`
	CoursesProgressed int     `json:"coursesProgressed"`
	AttendanceRate    int     `json:"attendanceRate"`
	UpcomingDeadlines int     `json:"upcomingDeadlines"`
}

// --- 認証 ---

// Register は新規ユーザーを登録し、ログイン状態にする。
func (c *Client) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}

	var wire userWire
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &wire); err != nil {
		return nil, err
	}
	return toUser(wire), nil
}

// Login はメールアドレスとパスワードでログインする。
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	body := map[string]string{"email": email, "password": password}

	var wire userWire
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &wire); err != nil {
		return nil, err
	}
	return toUser(wire), nil
}

// Logout はセッションを破棄する。
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// CurrentUser は現在のログインユーザー情報を取得する。
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var wire userWire
	if err := c.do(ctx, http.MethodGet, "/api/auth/user", nil, &wire); err != nil {
		return nil, err
	}
	return toUser(wire), nil
}

// --- コース ---

// ListCourses はコース一覧を取得する。
func (c *Client) ListCourses(ctx context.Context) ([]*model.Course, error) {
	var wires []courseWire
	if err := c.do(ctx, http.MethodGet, "/api/courses", nil, &wires); err != nil {
		return nil, err
	}

	courses := make([]*model.Course, 0, len(wires))
	for _, w := range wires {
		courses = append(courses, toCourse(w))
	}
	return courses, nil
}

// CreateCourse は新規コースを登録する。
func (c *Client) CreateCourse(ctx context.Context, input model.CourseInput) (*model.Course, error) {
	body := map[string]interface{}{
		"title":             input.Title,
		"platform":          input.Platform,
		"url":               input.URL,
		"totalSections":     input.TotalSections,
		"completedSections": input.CompletedSections,
		"startDate":         input.StartDate,
		"endDate":           input.EndDate,
		"imageUrl":          input.ImageURL,
	}

	var wire courseWire
	if err := c.do(ctx, http.MethodPost, "/api/courses", body, &wire); err != nil {
		return nil, err
	}
	return toCourse(wire), nil
}

// UpdateCourseProgress はコースの完了セクション数を更新する。
// サーバーが再計算した進捗率を含むコースを返す。
func (c *Client) UpdateCourseProgress(ctx context.Context, courseID string, completedSections int) (*model.Course, error) {
	body := map[string]int{"completedSections": completedSections}

	var wire courseWire
	if err := c.do(ctx, http.MethodPut, "/api/courses/"+courseID, body, &wire); err != nil {
		return nil, err
	}
	return toCourse(wire), nil
}

// FetchCourseImage はコースのサムネイル画像を取得する。
func (c *Client) FetchCourseImage(ctx context.Context, courseID string) (data []byte, mimeType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/courses/"+courseID+"/image", nil)
	if err != nil {
		return nil, "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", decodeAPIError(resp)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// --- イベント ---

// ListEvents はイベント一覧を取得する。
func (c *Client) ListEvents(ctx context.Context) ([]*model.CalendarEvent, error) {
	var wires []eventWire
	if err := c.do(ctx, http.MethodGet, "/api/events", nil, &wires); err != nil {
		return nil, err
	}

	events := make([]*model.CalendarEvent, 0, len(wires))
	for _, w := range wires {
		events = append(events, toEvent(w))
	}
	return events, nil
}

// CreateEvent は新規イベントを登録する。
func (c *Client) CreateEvent(ctx context.Context, input model.EventInput) (*model.CalendarEvent, error) {
	body := map[string]string{
		"courseId":    input.CourseID,
		"title":       input.Title,
		"date":        input.Date,
		"time":        input.Time,
		"type":        string(input.Type),
		"description": input.Description,
	}

	var wire eventWire
	if err := c.do(ctx, http.MethodPost, "/api/events", body, &wire); err != nil {
		return nil, err
	}
	return toEvent(wire), nil
}

// DeleteEvent はイベントを削除する。
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+eventID, nil, nil)
}

// --- 出欠記録 ---

// ListAttendance は出欠記録一覧を取得する。
func (c *Client) ListAttendance(ctx context.Context) ([]*model.AttendanceRecord, error) {
	var wires []attendanceWire
	if err := c.do(ctx, http.MethodGet, "/api/attendance", nil, &wires); err != nil {
		return nil, err
	}

	records := make([]*model.AttendanceRecord, 0, len(wires))
	for _, w := range wires {
		records = append(records, toAttendance(w))
	}
	return records, nil
}

// CreateAttendance は新規出欠記録を登録する。
func (c *Client) CreateAttendance(ctx context.Context, input model.AttendanceInput) (*model.AttendanceRecord, error) {
	body := map[string]string{
		"courseId": input.CourseID,
		"date":     input.Date,
		"status":   string(input.Status),
		"notes":    input.Notes,
	}

	var wire attendanceWire
	if err := c.do(ctx, http.MethodPost, "/api/attendance", body, &wire); err != nil {
		return nil, err
	}
	return toAttendance(wire), nil
}

// UpdateAttendance は出欠記録の状態とメモを更新する。
func (c *Client) UpdateAttendance(ctx context.Context, recordID string, status model.AttendanceStatus, notes string) (*model.AttendanceRecord, error) {
	body := map[string]string{"status": string(status), "notes": notes}

	var wire attendanceWire
	if err := c.do(ctx, http.MethodPut, "/api/attendance/"+recordID, body, &wire); err != nil {
		return nil, err
	}
	return toAttendance(wire), nil
}

// --- 分析 ---

// ListRecommendations は学習推薦一覧を優先度順で取得する。
func (c *Client) ListRecommendations(ctx context.Context) ([]*model.StudyRecommendation, error) {
	var wires []recommendationWire
	if err := c.do(ctx, http.MethodGet, "/api/recommendations", nil, &wires); err != nil {
		return nil, err
	}

	recs := make([]*model.StudyRecommendation, 0, len(wires))
	for _, w := range wires {
		createdAt, _ := time.Parse(time.RFC3339, w.CreatedAt)
		recs = append(recs, &model.StudyRecommendation{
			ID:          w.ID,
			CourseID:    w.CourseID,
			Title:       w.Title,
			Description: w.Description,
			Priority:    model.Priority(w.Priority),
			CreatedAt:   createdAt,
		})
	}
	return recs, nil
}

// ListInsights は週次サマリー一覧を週の昇順で取得する。
func (c *Client) ListInsights(ctx context.Context) ([]*model.WeeklyInsight, error) {
	var wires []insightWire
	if err := c.do(ctx, http.MethodGet, "/api/insights", nil, &wires); err != nil {
		return nil, err
	}

	insights := make([]*model.WeeklyInsight, 0, len(wires))
	for _, w := range wires {
		insights = append(insights, &model.WeeklyInsight{
			WeekStarting:      w.WeekStarting,
			HoursStudied:      w.HoursStudied,
			CoursesProgressed: w.CoursesProgressed,
			AttendanceRate:    w.AttendanceRate,
			UpcomingDeadlines: w.UpcomingDeadlines,
		})
	}
	return insights, nil
}

// --- 内部ヘルパー ---

// do はJSONリクエストを実行し、成功レスポンスをoutにデコードする。
// エラーレスポンスは*model.APIErrorとして返す。
func (c *Client) do(ctx context.Context, method, path string, reqBody interface{}, out interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp)
		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// decodeAPIError はエラーレスポンスを*model.APIErrorにデコードする。
// デコードできない場合はステータスコードのみを含むエラーを返す。
func decodeAPIError(resp *http.Response) error {
	var wire struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil || wire.Code == "" {
		return fmt.Errorf("APIがステータス %d を返しました", resp.StatusCode)
	}
	return &model.APIError{
		Code:     wire.Code,
		Message:  wire.Message,
		Category: wire.Category,
		Action:   wire.Action,
	}
}

func toUser(w userWire) *model.User {
	createdAt, _ := time.Parse(time.RFC3339, w.CreatedAt)
	return &model.User{
		ID:        w.ID,
		Username:  w.Username,
		Email:     w.Email,
		CreatedAt: createdAt,
	}
}

func toCourse(w courseWire) *model.Course {
	return &model.Course{
		ID:                w.ID,
		Title:             w.Title,
		Platform:          w.Platform,
		URL:               w.URL,
		Progress:          w.Progress,
		TotalSections:     w.TotalSections,
		CompletedSections: w.CompletedSections,
		StartDate:         w.StartDate,
		EndDate:           w.EndDate,
		ImageURL:          w.ImageURL,
	}
}

func toEvent(w eventWire) *model.CalendarEvent {
	return &model.CalendarEvent{
		ID:          w.ID,
		CourseID:    w.CourseID,
		Title:       w.Title,
		Date:        w.Date,
		Time:        w.Time,
		Type:        model.EventType(w.Type),
		Description: w.Description,
	}
}

func toAttendance(w attendanceWire) *model.AttendanceRecord {
	return &model.AttendanceRecord{
		ID:       w.ID,
		CourseID: w.CourseID,
		Date:     w.Date,
		Status:   model.AttendanceStatus(w.Status),
		Notes:    w.Notes,
	}
}
