package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/log"
)

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := app.PingContext(ctx); err != nil {
			log.WithError(err).Warn("health.db")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable"})
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}
