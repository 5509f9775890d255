// Package api is the admin HTTP surface over the subscription use cases.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/config"
	"sports-tips-subscription/internal/usecase"
)

type Server struct {
	subUC     usecase.SubscriptionUseCase
	userUC    usecase.UserUseCase
	pricingUC usecase.PricingUseCase
	statsUC   usecase.StatsUseCase
	auth      *AuthManager
	limiter   Limiter
	cfg       config.HTTPConfig
	log       *zerolog.Logger
}

// NewServer wires the handlers. limiter may be nil.
func NewServer(
	cfg config.HTTPConfig,
	subUC usecase.SubscriptionUseCase,
	userUC usecase.UserUseCase,
	pricingUC usecase.PricingUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	limiter Limiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		subUC:     subUC,
		userUC:    userUC,
		pricingUC: pricingUC,
		statsUC:   statsUC,
		auth:      auth,
		limiter:   limiter,
		cfg:       cfg,
		log:       &l,
	}
}

// Router returns the full handler tree, CORS included.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.cfg.RequestTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.Authenticate)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.createUser)
			r.Get("/", s.listUsers)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", s.getUser)
				r.Patch("/", s.updateUser)
				r.With(RequireAdmin).Put("/role", s.setUserRole)
				r.Get("/subscriptions", s.listUserSubscriptions)
				r.Get("/access/{plan}", s.checkAccess)
				r.Get("/quote", s.quoteForUser)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", s.assignSubscription)
			r.Route("/{subID}", func(r chi.Router) {
				r.Get("/", s.getSubscription)
				r.Post("/freeze", s.freezeSubscription)
				r.Post("/unfreeze", s.unfreezeSubscription)
				r.Post("/renew", s.renewSubscription)
				r.Post("/expire", s.expireSubscription)
			})
		})

		r.Get("/quote", s.quote)
		r.Get("/rates", s.rates)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/revenue", s.revenue)
			r.Get("/states", s.states)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", traceHeader},
		ExposedHeaders:   []string{"Content-Length", traceHeader},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	})
	return c.Handler(r)
}

// HTTPServer builds the listener config around Router.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
