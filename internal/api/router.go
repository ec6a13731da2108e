package api

import (
	"net/http"
	"time"

	"code_dojo/internal/api/handler"
	"code_dojo/internal/app/service"
	"code_dojo/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Auth         *service.AuthService
	Exercises    *service.ExerciseService
	Verification *service.VerificationService
	Users        *service.UserService
	Leaderboard  *service.LeaderboardService
	Admin        *service.AdminService
}

// requestTimeout must cover a full judge round trip.
func NewRouter(svc Services, allowedOrigins []string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))
	// CORS headers are set here and nowhere else
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Verifies "Authorization: Bearer T" when present; routes that need a user
	// add middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/auth", handler.NewAuthHandler(svc.Auth).RegisterRoutes)
		v1.Route("/exercises", handler.NewExerciseHandler(svc.Exercises, svc.Verification).RegisterRoutes)
		v1.Route("/users", handler.NewUserHandler(svc.Users).RegisterRoutes)
		v1.Route("/leaderboard", handler.NewLeaderboardHandler(svc.Leaderboard).RegisterRoutes)
		v1.Route("/admin", handler.NewAdminHandler(svc.Admin).RegisterRoutes)
	})

	return r
}
