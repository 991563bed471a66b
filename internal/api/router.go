/**
 * @description
 * This file sets up the HTTP router for the onboarding service. It defines
 * the API endpoints, associates them with their handlers, and applies the
 * middleware stack: request logging, panic recovery, timeouts, CORS, and
 * JWT authentication for everything except the health check.
 *
 * @dependencies
 * - net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// OnboardingRoutes creates and returns the router for the onboarding service.
func OnboardingRoutes(h *OnboardingHandlers, jwksURL, allowedOrigins string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(allowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// All onboarding endpoints require an authenticated user.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Route("/onboarding", func(r chi.Router) {
			r.Post("/initialize", h.InitializeHandler)
			r.Get("/", h.GetRecordHandler)
			r.Put("/consents", h.SaveConsentsHandler)
			r.Put("/profile", h.SaveProfileHandler)
			r.Put("/kyc", h.SaveKYCHandler)
			r.Post("/kyc/start", h.StartKYCHandler)
			r.Get("/kyc/status", h.CheckKYCStatusHandler)
			r.Put("/wallet", h.LinkWalletHandler)
			r.Post("/broker", h.CreateBrokerAccountHandler)
			r.Put("/security", h.SetupTwoFactorHandler)
			r.Post("/security/skip", h.SkipTwoFactorHandler)
			r.Put("/preferences", h.SavePreferencesHandler)
			r.Put("/step", h.UpdateStepHandler)
		})
	})

	return r
}
