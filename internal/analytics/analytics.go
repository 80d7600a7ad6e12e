// Package analytics はストアのスナップショットから表示用の集計値を導出する純粋関数群を提供する。
// すべての関数は副作用を持たず、同じ入力と同じ基準日に対して同じ結果を返す。
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/hitoshi/manabu/internal/model"
)

const dateLayout = "2006-01-02"

// OverallProgress は全コースの総合進捗率を返す。
// 合計セクション数が0のコースも分母に含める。全体の合計が0の場合は0を返す。
func OverallProgress(courses []*model.Course) int {
	var completed, total int
	for _, c := range courses {
		completed += c.CompletedSections
		total += c.TotalSections
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// AttendanceRate は出席率を返す。記録が無い場合は0を返す。
func AttendanceRate(records []*model.AttendanceRecord) int {
	if len(records) == 0 {
		return 0
	}
	var present int
	for _, r := range records {
		if r.Status == model.AttendancePresent {
			present++
		}
	}
	return int(math.Round(float64(present) / float64(len(records)) * 100))
}

// UpcomingEvents は基準日から7日以内のイベントを日付昇順で返す。
// ウィンドウは半開区間で、基準日当日は含み、ちょうど7日後は含まない。
// 日付が解釈できないイベントは除外する。limitが0以下の場合は制限しない。
func UpcomingEvents(events []*model.CalendarEvent, today time.Time, limit int) []*model.CalendarEvent {
	start := truncateToDate(today)
	end := start.AddDate(0, 0, 7)

	upcoming := make([]*model.CalendarEvent, 0)
	for _, e := range events {
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			continue
		}
		if !d.Before(start) && d.Before(end) {
			upcoming = append(upcoming, e)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Date < upcoming[j].Date
	})

	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// HighPriorityRecommendations は優先度highの推薦を元の順序のまま返す。
// limitが0以下の場合は制限しない。
func HighPriorityRecommendations(recs []*model.StudyRecommendation, limit int) []*model.StudyRecommendation {
	high := make([]*model.StudyRecommendation, 0)
	for _, r := range recs {
		if r.Priority == model.PriorityHigh {
			high = append(high, r)
		}
	}
	if limit > 0 && len(high) > limit {
		high = high[:limit]
	}
	return high
}

// LatestInsight はweekStartingが最大の週次サマリーを返す。
// サマリーが無い場合は第2戻り値がfalseになる。
func LatestInsight(insights []*model.WeeklyInsight) (*model.WeeklyInsight, bool) {
	if len(insights) == 0 {
		return nil, false
	}
	latest := insights[0]
	for _, in := range insights[1:] {
		if in.WeekStarting > latest.WeekStarting {
			latest = in
		}
	}
	return latest, true
}

// CompletionEstimate はコースの完了予測。
type CompletionEstimate struct {
	// Days は完了までの予測日数。
	Days int
	// Date は予測完了日（YYYY-MM-DD）。
	Date string
}

// EstimateCompletion は現在のペースからコースの完了予測を算出する。
// 開始からの経過日数は1日未満でも1に切り上げる。開始当日や開始前のコースでは
// 楽観的な予測になるが、これは意図した仕様である。
// 進捗が0、または開始日が解釈できない場合は予測不能として第2戻り値がfalseになる。
func EstimateCompletion(course *model.Course, today time.Time) (CompletionEstimate, bool) {
	start, err := time.Parse(dateLayout, course.StartDate)
	if err != nil {
		return CompletionEstimate{}, false
	}

	elapsed := int(math.Floor(truncateToDate(today).Sub(start).Hours() / 24))
	daysSinceStart := max(1, elapsed)

	progressPerDay := float64(course.Progress) / float64(daysSinceStart)
	if progressPerDay <= 0 {
		return CompletionEstimate{}, false
	}

	days := int(math.Ceil(float64(100-course.Progress) / progressPerDay))
	return CompletionEstimate{
		Days: days,
		Date: truncateToDate(today).AddDate(0, 0, days).Format(dateLayout),
	}, true
}

// TrendSeries はチャート描画用に週次サマリーを並列の系列へ射影したもの。
type TrendSeries struct {
	// Labels は各週の表示用ラベル（月/日）。
	Labels            []string
	HoursStudied      []float64
	AttendanceRate    []int
	CoursesProgressed []int
	UpcomingDeadlines []int
}

// WeeklyTrend は週次サマリーをweekStarting昇順に並べ、系列ごとに射影する。
func WeeklyTrend(insights []*model.WeeklyInsight) TrendSeries {
	sorted := make([]*model.WeeklyInsight, len(insights))
	copy(sorted, insights)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WeekStarting < sorted[j].WeekStarting
	})

	series := TrendSeries{
		Labels:            make([]string, 0, len(sorted)),
		HoursStudied:      make([]float64, 0, len(sorted)),
		AttendanceRate:    make([]int, 0, len(sorted)),
		CoursesProgressed: make([]int, 0, len(sorted)),
		UpcomingDeadlines: make([]int, 0, len(sorted)),
	}
	for _, in := range sorted {
		series.Labels = append(series.Labels, weekLabel(in.WeekStarting))
		series.HoursStudied = append(series.HoursStudied, in.HoursStudied)
		series.AttendanceRate = append(series.AttendanceRate, in.AttendanceRate)
		series.CoursesProgressed = append(series.CoursesProgressed, in.CoursesProgressed)
		series.UpcomingDeadlines = append(series.UpcomingDeadlines, in.UpcomingDeadlines)
	}
	return series
}

func weekLabel(weekStarting string) string {
	d, err := time.Parse(dateLayout, weekStarting)
	if err != nil {
		return weekStarting
	}
	return d.Format("1/2")
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
