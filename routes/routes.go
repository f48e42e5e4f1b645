package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RealIP, middlewares.RequestID, middleware.Logger, middleware.Recoverer)

	root.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/apply", http.StatusFound)
	})
	root.Get("/apply", ApplyForm(app))
	root.Post("/apply", Submit(app))
	root.Post("/submit", Submit(app))

	root.Get("/health", Health(app))
	root.Handle("/metrics", promhttp.Handler())

	root.Mount("/api", apiRouter(app))
	root.Mount("/admin", adminRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/roles", Roles(app))
	api.Post("/otp/request", RequestOTP(app))
	api.With(middlewares.RateLimit(app.VerifyLimiter, middlewares.ClientIP)).Post("/otp/verify", VerifyOTP(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		r.Get("/applications", ListApplications(app))
		r.Get("/analytics", Analytics(app))
	})

	api.With(loginLimit(app)).Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func adminRouter(app app.App) http.Handler {
	admin := chi.NewRouter()

	admin.Get("/login", AdminLoginForm(app))
	admin.With(loginLimit(app)).Post("/login", AdminLogin(app))
	admin.Get("/logout", AdminLogout(app))

	admin.Group(func(r chi.Router) {
		r.Use(middlewares.CookieAuth(app.BearerServer, "/admin/login"), middlewares.Admin(app.TokenSecret))

		r.Get("/", AdminDashboard(app))
		r.Get("/export.xlsx", ExportXLSX(app))
		r.Get("/export.csv", ExportCSV(app))
	})

	return admin
}

func loginLimit(app app.App) func(http.Handler) http.Handler {
	return middlewares.RateLimit(app.LoginLimiter, middlewares.ClientIP)
}
