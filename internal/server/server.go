package server

import (
	"context"
	"net/http"
	"time"

	"github.com/emosense/authd/internal/auth"
	"github.com/emosense/authd/internal/config"
	"github.com/emosense/authd/internal/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	log    *zap.Logger
	server *http.Server
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   *config.Config
	Auth     *auth.Manager
	Sessions *middleware.SessionManager
}

func New(p Params) (*Server, error) {
	h := &handlers{
		log:        p.Log,
		auth:       p.Auth,
		sessions:   p.Sessions,
		otpLimiter: newIdentifierLimiter(p.Config.Auth.OTPRequestsPerMinute),
	}

	root := chi.NewRouter()
	root.Use(p.Sessions.Wrap)
	root.Use(requestLogger(p.Log))

	// No auth
	root.Group(func(r chi.Router) {
		r.Get("/login", h.loginPage)
		r.Get("/register", h.registerPage)

		r.Post("/api/login", h.login)
		r.Post("/api/register", h.register)
		r.Post("/api/otp/request", h.requestOTP)
		r.Post("/api/otp/login", h.loginOTP)
	})

	// Auth
	root.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/journal", h.journalPage)
		r.Get("/profile", h.profilePage)
		r.Get("/consent-form", h.consentPage)
		r.Get("/user-classification", h.classificationPage)

		r.Get("/api/session", h.session)
		r.Post("/api/logout", h.logout)
		r.Post("/api/consent", h.giveConsent)
		r.Post("/api/classification", h.setClassification)
	})

	root.Get("/", h.index)

	return &Server{
		log: p.Log,
		server: &http.Server{
			Addr:    p.Config.Listen,
			Handler: root,
		},
	}, nil
}

// RegisterHooks should be invoked by fx
func RegisterHooks(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.server.Shutdown,
	})
}

func (s *Server) Start(_ context.Context) error {
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.log.Error("error starting server", zap.Error(err))
		}
	}()
	return nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
