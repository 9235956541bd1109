package handlers

import (
	"net/http"
	"time"

	"course-marketplace/internal/logger"
	"course-marketplace/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Router собирает зависимости HTTP слоя
type Router struct {
	Orders     *OrderHandler
	Promos     *PromoHandler
	Auth       *AuthHandler
	Courses    *CourseHandler
	Stats      *StatsHandler
	Health     *HealthHandler
	RateLimit  *RateLimitHandler
	Sessions   AuthService
	Limiter    RateLimiter
	CookieName string
	Timeout    time.Duration
	Log        *logger.Logger
}

// Handler строит chi-маршруты: /health* без префикса, остальное под /api
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(rt.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", rt.Health.Health)
	r.Get("/health/readiness", rt.Health.Readiness)
	r.Get("/health/liveness", rt.Health.Liveness)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if rt.Timeout > 0 {
			r.Use(middleware.Timeout(rt.Timeout))
		}
		r.Use(Authenticator(rt.Sessions, rt.CookieName, rt.Log))
		r.Use(RateLimit(rt.Limiter, services.ScopeAPI, rt.Log))

		r.Get("/rate-limit/status", rt.RateLimit.Status)
		r.Get("/stats", rt.Stats.GetStats)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.Auth.Register)
			r.Post("/login", rt.Auth.Login)
			r.With(RateLimit(rt.Limiter, services.ScopeOTP, rt.Log)).Post("/send-otp", rt.Auth.SendOTP)
			r.Post("/verify-otp", rt.Auth.VerifyOTP)
			r.Post("/logout", rt.Auth.Logout)
			r.With(RequireUser).Get("/me", rt.Auth.Me)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", rt.Courses.ListCourses)
			r.Get("/{ref}", rt.Courses.GetCourse)
			r.With(RequireAdmin).Post("/", rt.Courses.CreateCourse)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RequireUser)
				r.Post("/", rt.Orders.CreateOrder)
				r.Get("/my", rt.Orders.ListMyOrders)
				r.Get("/{id}", rt.Orders.GetOrder)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", rt.Orders.ListOrders)
				r.Get("/buyers", rt.Orders.ListBuyers)
				r.Put("/", rt.Orders.UpdateOrderStatus)
			})
		})

		r.Route("/promocodes", func(r chi.Router) {
			r.With(RequireUser).Post("/validate", rt.Promos.ValidatePromoCode)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", rt.Promos.ListPromoCodes)
				r.Post("/", rt.Promos.CreatePromoCode)
				r.Put("/", rt.Promos.UpdatePromoCode)
				r.Delete("/", rt.Promos.DeletePromoCode)
			})
		})
	})

	return r
}
