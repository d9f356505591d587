// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up the HTTP routes and middleware chain of the
// personalization API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"webtoprint/internal/handlers"
	"webtoprint/internal/middleware"
)

// New creates the chi router with all middleware and routes wired up.
// limiter guards the expensive session-creating and upload routes; nil
// disables rate limiting.
func New(sessions *handlers.Sessions, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.Get("/health", healthHandler)

	limited := func(h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return limiter.Middleware(h)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Method(http.MethodPost, "/", limited(sessions.Open))
		r.Get("/current", sessions.Current)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sessions.Get)
			r.Delete("/", sessions.Close)
			r.Post("/save", sessions.Save)

			// Fields
			r.Post("/fields/toggle", sessions.ToggleFields)
			r.Put("/fields/{name}", sessions.SetField)
			r.Put("/fields/{name}/colour", sessions.SetFieldColour)
			r.Get("/fields/{name}/hint", sessions.Hint)
			r.Put("/palettes/{palette}", sessions.SetPalette)

			// Images and the upload gallery
			r.Put("/images/{name}", sessions.SelectImage)
			r.Delete("/images/{name}", sessions.DeleteImage)
			r.Post("/images/{name}/rotate", sessions.Rotate)
			r.Method(http.MethodPost, "/assets", limited(sessions.Upload))
			r.Delete("/assets/{assetID}", sessions.DeleteAsset)

			// Previews, pages and the cart
			r.Post("/preview", sessions.Preview)
			r.Put("/page", sessions.SetPage)
			r.Post("/page/next", sessions.NextPage)
			r.Get("/pages/{n}/share.png", sessions.ShareQR)
			r.Post("/cart", sessions.Cart)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
