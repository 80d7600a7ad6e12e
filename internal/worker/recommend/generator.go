// Package recommend は学習推薦のバックグラウンド生成処理を提供する。
// ティッカーでユーザーごとに現在の学習データから推薦を導出し、全件入れ替える。
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/manabu/internal/metrics"
	"github.com/hitoshi/manabu/internal/model"
	"github.com/hitoshi/manabu/internal/repository"
)

const (
	// stalledAfterDays はコースを停滞とみなす未更新日数。
	stalledAfterDays = 14
	// deadlineWindowDays は締切を切迫とみなす日数。
	deadlineWindowDays = 3
	// weakAttendanceThreshold はこの値未満の出席率を低出席とみなす。
	weakAttendanceThreshold = 60
	// weakAttendanceMinRecords は出席率を判定する最小記録数。
	weakAttendanceMinRecords = 3
	// nearCompleteThreshold はこの値以上の進捗を完了間近とみなす。
	nearCompleteThreshold = 80

	dateLayout = "2006-01-02"
)

// Generator はユーザーごとの学習推薦を導出し、推薦セットを入れ替える。
// semaphoreパターンで最大並列数を制御しながらユーザー単位で実行する。
type Generator struct {
	userRepo       repository.UserRepository
	courseRepo     repository.CourseRepository
	eventRepo      repository.EventRepository
	attendanceRepo repository.AttendanceRepository
	recRepo        repository.RecommendationRepository
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	now            func() time.Time
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewGenerator(
	userRepo repository.UserRepository,
	courseRepo repository.CourseRepository,
	eventRepo repository.EventRepository,
	attendanceRepo repository.AttendanceRepository,
	recRepo repository.RecommendationRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Generator {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Generator{
		userRepo:       userRepo,
		courseRepo:     courseRepo,
		eventRepo:      eventRepo,
		attendanceRepo: attendanceRepo,
		recRepo:        recRepo,
		collector:      collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Start は指定間隔のティッカーで生成サイクルを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (g *Generator) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.logger.Info("推薦生成ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", g.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := g.RunOnce(ctx); err != nil {
		g.logger.Error("推薦生成サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("推薦生成ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := g.RunOnce(ctx); err != nil {
				g.logger.Error("推薦生成サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全ユーザーの推薦を1回生成する。
// semaphoreパターンで最大並列数を制御する。
func (g *Generator) RunOnce(ctx context.Context) error {
	start := g.now()

	userIDs, err := g.userRepo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("ユーザーID一覧の取得に失敗しました: %w", err)
	}

	if len(userIDs) == 0 {
		g.logger.Info("推薦生成対象のユーザーはいません")
		return nil
	}

	g.logger.Info("推薦生成サイクルを開始します",
		slog.Int("user_count", len(userIDs)),
	)

	sem := make(chan struct{}, g.maxConcurrency)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{}

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := g.GenerateForUser(ctx, id); err != nil {
				g.collector.RecordRecommendFailure(id, err.Error())
				g.logger.Error("ユーザーの推薦生成に失敗しました",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
				return
			}
			g.collector.RecordRecommendSuccess(id)
		}(userID)
	}

	wg.Wait()

	duration := time.Since(start)
	g.collector.RecordRecommendCycleDuration(duration)
	g.logger.Info("推薦生成サイクルが完了しました",
		slog.Int("user_count", len(userIDs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// GenerateForUser は1ユーザーの学習データから推薦を導出し、全件入れ替える。
func (g *Generator) GenerateForUser(ctx context.Context, userID string) error {
	courses, err := g.courseRepo.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	events, err := g.eventRepo.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	records, err := g.attendanceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("出欠記録一覧の取得に失敗しました: %w", err)
	}

	recs := g.derive(courses, events, records)

	if err := g.recRepo.ReplaceForUser(ctx, userID, recs); err != nil {
		return fmt.Errorf("推薦の入れ替えに失敗しました: %w", err)
	}
	return nil
}

// derive は現在の学習データから推薦を優先度順（high, medium, low）で導出する。
func (g *Generator) derive(
	courses []*model.Course,
	events []*model.CalendarEvent,
	records []*model.AttendanceRecord,
) []*model.StudyRecommendation {
	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	coursesByID := make(map[string]*model.Course, len(courses))
	for _, c := range courses {
		coursesByID[c.ID] = c
	}

	var high, medium, low []*model.StudyRecommendation

	// 停滞コース: 進行中なのに一定期間更新されていない
	for _, c := range courses {
		if c.Progress > 0 && c.Progress < 100 &&
			now.Sub(c.UpdatedAt) >= stalledAfterDays*24*time.Hour {
			days := int(now.Sub(c.UpdatedAt).Hours() / 24)
			high = append(high, g.newRecommendation(c.ID, model.PriorityHigh,
				"停滞中のコースを再開しましょう",
				fmt.Sprintf("「%s」は%d日間進捗がありません。短いセクションから再開するのがおすすめです。", c.Title, days),
			))
		}
	}

	// 切迫した締切: 未完了コースの締切・試験が近い
	deadlineEnd := today.AddDate(0, 0, deadlineWindowDays)
	for _, e := range events {
		if e.Type != model.EventTypeDeadline && e.Type != model.EventTypeExam {
			continue
		}
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			continue
		}
		if d.Before(today) || d.After(deadlineEnd) {
			continue
		}
		course, ok := coursesByID[e.CourseID]
		if !ok || course.Progress >= 100 {
			continue
		}
		high = append(high, g.newRecommendation(course.ID, model.PriorityHigh,
			"締切が近づいています",
			fmt.Sprintf("「%s」の%sが%sに迫っています。優先的に取り組みましょう。", course.Title, eventTypeLabel(e.Type), e.Date),
		))
	}

	// 低出席率: 記録が十分あるコースで出席率が閾値を下回る
	type attendanceCount struct {
		present int
		total   int
	}
	byCourse := make(map[string]*attendanceCount)
	for _, r := range records {
		c, ok := byCourse[r.CourseID]
		if !ok {
			c = &attendanceCount{}
			byCourse[r.CourseID] = c
		}
		c.total++
		if r.Status == model.AttendancePresent {
			c.present++
		}
	}
	for courseID, count := range byCourse {
		if count.total < weakAttendanceMinRecords {
			continue
		}
		rate := count.present * 100 / count.total
		if rate >= weakAttendanceThreshold {
			continue
		}
		course, ok := coursesByID[courseID]
		if !ok {
			continue
		}
		medium = append(medium, g.newRecommendation(courseID, model.PriorityMedium,
			"出席率が低下しています",
			fmt.Sprintf("「%s」の出席率が%d%%です。次回の講義には出席しましょう。", course.Title, rate),
		))
	}

	// 完了間近: あと少しで完了するコース
	for _, c := range courses {
		if c.Progress >= nearCompleteThreshold && c.Progress < 100 {
			low = append(low, g.newRecommendation(c.ID, model.PriorityLow,
				"あと少しで完了です",
				fmt.Sprintf("「%s」は残り%dセクションです。一気に仕上げましょう。", c.Title, c.TotalSections-c.CompletedSections),
			))
		}
	}

	recs := make([]*model.StudyRecommendation, 0, len(high)+len(medium)+len(low))
	recs = append(recs, high...)
	recs = append(recs, medium...)
	recs = append(recs, low...)
	return recs
}

func (g *Generator) newRecommendation(courseID string, priority model.Priority, title, description string) *model.StudyRecommendation {
	return &model.StudyRecommendation{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   g.now(),
	}
}

func eventTypeLabel(t model.EventType) string {
	switch t {
	case model.EventTypeExam:
		return "試験"
	case model.EventTypeDeadline:
		return "締切"
	case model.EventTypeLecture:
		return "講義"
	case model.EventTypeAssignment:
		return "課題"
	default:
		return string(t)
	}
}
