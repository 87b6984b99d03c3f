package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealbox/internal/metrics"
	"github.com/hitoshi/mealbox/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Devices           middleware.DeviceProvider
	CookieSecure      bool
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// プロフィール
	Profiles ProfileStore

	// コンテンツ
	Content ContentService

	// お気に入り
	Favorites FavoriteService

	// カート
	ImageValidator ImageURLValidator
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Device → RateLimit(Auth|General) → RequireUser
//
// /health と /metrics はデバイスを必要としない。
// /auth/*、/api/state*、/api/tiers、/api/onboarding はデバイスのみで利用でき、
// それ以外の /api/* は検証済みユーザーを持つデバイスを必要とする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	// CORS ミドルウェアをデバイス特定より前に適用（プリフライトに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))

	healthHandler := NewHealthHandler(deps.HealthChecker)
	authHandler := NewAuthHandler()
	stateHandler := NewStateHandler(deps.CORSAllowedOrigin)
	profileHandler := NewProfileHandler(deps.Profiles)
	cartHandler := NewCartHandler(deps.ImageValidator)
	contentHandler := NewContentHandler(deps.Content)
	favoriteHandler := NewFavoriteHandler(deps.Favorites)

	// --- デバイス不要のルート ---
	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- デバイスが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewDeviceMiddleware(deps.Devices, deps.CookieSecure))

		// 認証ルート（認証専用レート制限）
		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())

			r.Post("/session", authHandler.SetSession)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// サインイン前から利用する
			r.Route("/state", func(r chi.Router) {
				r.Get("/", stateHandler.GetState)
				r.Get("/stream", stateHandler.Stream)
				r.Delete("/redirect", stateHandler.AcknowledgeRedirect)
			})
			r.Get("/tiers", contentHandler.ListTiers)
			r.Get("/onboarding", contentHandler.GetOnboarding)

			// --- 検証済みユーザーが必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewRequireUserMiddleware())

				r.Get("/profile", profileHandler.GetProfile)
				r.Put("/profile", profileHandler.PutProfile)

				r.Get("/entitlements", stateHandler.Entitlements)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cartHandler.GetCart)
					r.Delete("/", cartHandler.ClearCart)
					r.Post("/items", cartHandler.AddItem)
					r.Patch("/items/{id}", cartHandler.UpdateItem)
					r.Delete("/items/{id}", cartHandler.RemoveItem)
				})

				r.Get("/categories", contentHandler.ListCategories)
				r.Get("/categories/{slug}/recipes", contentHandler.ListRecipes)
				r.Get("/recipes/{slug}", contentHandler.GetRecipe)

				r.Route("/favorites", func(r chi.Router) {
					r.Get("/", favoriteHandler.ListFavorites)
					r.Post("/", favoriteHandler.AddFavorite)
					r.Delete("/{recipeID}", favoriteHandler.RemoveFavorite)
				})
			})
		})
	})

	return r
}
