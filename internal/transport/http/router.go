package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	authapp "github.com/paperhub-api/internal/application/auth"
	paperapp "github.com/paperhub-api/internal/application/paper"
	"github.com/paperhub-api/internal/config"
	jwtinfra "github.com/paperhub-api/internal/infrastructure/jwt"
	"github.com/paperhub-api/internal/infrastructure/postgres"
	s3infra "github.com/paperhub-api/internal/infrastructure/s3"
	"github.com/paperhub-api/internal/infrastructure/smtp"
	"github.com/paperhub-api/internal/transport/http/handler"
	appmiddleware "github.com/paperhub-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo     *postgres.UserRepo
	PaperRepo    *postgres.PaperRepo
	BookmarkRepo *postgres.BookmarkRepo
	S3Store      *s3infra.Store
	Mailer       smtp.Mailer
	JWTProvider  *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	authSvc := authapp.NewService(authapp.ServiceDeps{
		UserRepo:    deps.UserRepo,
		Tokens:      deps.JWTProvider,
		Mailer:      deps.Mailer,
		ObjectStore: deps.S3Store,
		FrontendURL: cfg.FrontendURL,
		BackendURL:  cfg.BackendURL,
	})
	paperSvc := paperapp.NewService(paperapp.ServiceDeps{
		PaperRepo:    deps.PaperRepo,
		BookmarkRepo: deps.BookmarkRepo,
		ObjectStore:  deps.S3Store,
	})

	authMw := appmiddleware.Auth(authSvc)
	optionalAuthMw := appmiddleware.OptionalAuth(authSvc)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	paperH := handler.NewPaperHandler(paperSvc)

	r.Get("/health", healthH.Ping)

	r.Route("/auth", func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/login", authH.Login)
		r.Post("/refresh", authH.Refresh)
		r.Get("/verify-email", authH.VerifyEmail)
		r.With(sensitiveRL.Limit).Post("/send-email", authH.SendResetEmail)
		r.With(sensitiveRL.Limit).Post("/reset-password", authH.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/profile", authH.Profile)
			r.Delete("/delete", authH.DeleteAccount)
		})
	})

	r.Route("/papers", func(r chi.Router) {
		r.Get("/get-papers", paperH.List)
		r.With(optionalAuthMw).Post("/get-paper/{id}", paperH.Get)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/upload", paperH.Upload)
			r.Get("/get-user-papers", paperH.ListOwn)
			r.Post("/bookmark-paper/{id}", paperH.ToggleBookmark)
			r.Get("/get-bookmarks", paperH.ListBookmarks)
			r.Put("/edit-paper/{id}", paperH.Edit)
			r.Delete("/delete-paper/{id}", paperH.Delete)
		})
	})

	return r
}
