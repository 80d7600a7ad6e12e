package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/manabu/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス公開ハンドラー（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler
	// ステータスコード記録（nilの場合は記録しない）
	StatusRecorder middleware.HTTPStatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// コース
	CourseService CourseServiceInterface

	// スケジュール（イベント・出欠）
	EventService      EventServiceInterface
	AttendanceService AttendanceServiceInterface

	// 分析（推薦・週次サマリー）
	RecommendationLister RecommendationListerInterface
	InsightLister        InsightListerInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Session → RateLimit(General)
//
// 認証ルート（/api/auth/*）とヘルスチェックはセッションミドルウェアの外に配置する。
// 書き込み系エンドポイントには書き込み専用レート制限を追加適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	courseHandler := NewCourseHandler(deps.CourseService)
	eventHandler := NewEventHandler(deps.EventService)
	attendanceHandler := NewAttendanceHandler(deps.AttendanceService)
	insightHandler := NewInsightHandler(deps.RecommendationLister, deps.InsightLister)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（セッションCookieを直接読むのでセッションミドルウェアの外）
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/user", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		writeLimited := deps.RateLimiter.WriteMiddleware()

		// コース管理
		r.Route("/api/courses", func(r chi.Router) {
			r.Get("/", courseHandler.ListCourses)
			r.With(writeLimited).Post("/", courseHandler.CreateCourse)

			r.Route("/{id}", func(r chi.Router) {
				r.With(writeLimited).Put("/", courseHandler.UpdateProgress)
				r.Get("/image", courseHandler.GetImage)
			})
		})

		// イベント管理
		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", eventHandler.ListEvents)
			r.With(writeLimited).Post("/", eventHandler.CreateEvent)
			r.With(writeLimited).Delete("/{id}", eventHandler.DeleteEvent)
		})

		// 出欠記録管理
		r.Route("/api/attendance", func(r chi.Router) {
			r.Get("/", attendanceHandler.ListAttendance)
			r.With(writeLimited).Post("/", attendanceHandler.CreateAttendance)
			r.With(writeLimited).Put("/{id}", attendanceHandler.UpdateAttendance)
		})

		// 分析（読み取り専用）
		r.Get("/api/recommendations", insightHandler.ListRecommendations)
		r.Get("/api/insights", insightHandler.ListInsights)
	})

	return r
}
