package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mvanbree/palette/internal/http/handler"
	"github.com/mvanbree/palette/internal/http/middleware"
	"github.com/mvanbree/palette/internal/http/response"
	"github.com/mvanbree/palette/internal/service"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	GalleryHandler   *handler.GalleryHandler
	ArchiveHandler   *handler.ArchiveHandler
	Gate             *middleware.Gate
	APIRateLimitRPM  int
	AuthRateLimitRPM int
	RequestTimeout   time.Duration
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	if dep.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(dep.RequestTimeout))
	}
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()

	// The access-token gate runs on every API route; it soft-fails, so
	// public reads pass through unauthenticated while mutations sit behind
	// RequireAuth.
	withAccess := dep.Gate.Authenticate(service.StrategyAccessToken)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(withAccess)

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register/local", dep.AuthHandler.RegisterLocal)
			r.With(authLimiter, dep.Gate.Authenticate(service.StrategyLocalCredentials)).Post("/login/local", dep.AuthHandler.LoginLocal)
			r.Group(func(r chi.Router) {
				r.Use(middleware.CSRFMiddleware)
				r.With(authLimiter, dep.Gate.Authenticate(service.StrategyRefreshToken)).Post("/refresh", dep.AuthHandler.Refresh)
				r.With(dep.Gate.RequireAuth).Delete("/logout", dep.AuthHandler.Logout)
			})
		})

		r.With(dep.Gate.RequireAuth).Get("/me", dep.AuthHandler.Me)
		r.With(dep.Gate.RequireAuth).Get("/me/sessions", dep.AuthHandler.Sessions)

		r.Route("/painters", func(r chi.Router) {
			r.Get("/", dep.GalleryHandler.ListPainters)
			r.Get("/{id}", dep.GalleryHandler.GetPainter)
			r.Get("/{id}/paintings", dep.GalleryHandler.ListPaintings)
			r.Group(func(r chi.Router) {
				r.Use(dep.Gate.RequireAuth, middleware.CSRFMiddleware)
				r.Post("/", dep.GalleryHandler.CreatePainter)
				r.Patch("/{id}", dep.GalleryHandler.UpdatePainter)
				r.Delete("/{id}", dep.GalleryHandler.DeletePainter)
			})
		})
		r.Route("/paintings", func(r chi.Router) {
			r.Get("/{id}", dep.GalleryHandler.GetPainting)
			r.Group(func(r chi.Router) {
				r.Use(dep.Gate.RequireAuth, middleware.CSRFMiddleware)
				r.Post("/", dep.GalleryHandler.CreatePainting)
				r.Delete("/{id}", dep.GalleryHandler.DeletePainting)
			})
		})
		r.Route("/techniques", func(r chi.Router) {
			r.Get("/", dep.GalleryHandler.ListTechniques)
			r.Group(func(r chi.Router) {
				r.Use(dep.Gate.RequireAuth, middleware.CSRFMiddleware)
				r.Post("/", dep.GalleryHandler.CreateTechnique)
				r.Delete("/{id}", dep.GalleryHandler.DeleteTechnique)
			})
		})
		r.Route("/folders", func(r chi.Router) {
			r.Use(dep.Gate.RequireAuth)
			r.Get("/", dep.ArchiveHandler.ListFolders)
			r.Get("/{id}", dep.ArchiveHandler.GetFolder)
			r.Group(func(r chi.Router) {
				r.Use(middleware.CSRFMiddleware)
				r.Post("/", dep.ArchiveHandler.CreateFolder)
				r.Delete("/{id}", dep.ArchiveHandler.DeleteFolder)
			})
		})
		r.Route("/files", func(r chi.Router) {
			r.Use(dep.Gate.RequireAuth)
			r.Get("/{id}", dep.ArchiveHandler.GetFile)
			r.Group(func(r chi.Router) {
				r.Use(middleware.CSRFMiddleware)
				r.Post("/", dep.ArchiveHandler.CreateFile)
				r.Delete("/{id}", dep.ArchiveHandler.DeleteFile)
			})
		})
	})

	// Browser-rendered shell: unauthenticated visitors are redirected to
	// /login with a return URL rather than handed a raw 401.
	r.Group(func(r chi.Router) {
		r.Use(withAccess)
		r.Use(dep.Gate.RequireAuthWeb("/login"))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<!doctype html><title>palette</title>"))
		})
		r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<!doctype html><title>palette login</title>"))
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
