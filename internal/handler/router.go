package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/sweetshop-storefront/internal/middleware"
)

// pathParam извлекает параметр пути chi.
func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Session(h.session))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/session", h.GetSession)

		r.Get("/sweets", h.GetSweets)
		r.Post("/sweets", h.AddSweet)
		r.Get("/sweets/{name}", h.GetSweet)
		r.Put("/sweets/{name}/price", h.UpdateSweetPrice)

		r.Get("/reviews", h.GetReviews)
		r.Get("/reviews/stats", h.GetReviewStats)
		r.Post("/reviews", h.SubmitReview)

		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.SaveProfile)
		r.Get("/profiles/{principal}", h.GetProfileByPrincipal)

		r.Post("/roles", h.AssignRole)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
