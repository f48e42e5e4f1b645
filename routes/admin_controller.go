package routes

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-apply/analytics"
	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/export"
	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/model"
)

type adminPage struct {
	Applications []model.Application
	Summary      model.Summary
}

func AdminDashboard(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := app.Store.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "store.list_applications", err)
			return
		}

		renderPage(w, http.StatusOK, "admin.html", adminPage{
			Applications: apps,
			Summary:      analytics.Summarize(apps, app.PassScore),
		})
	}
}

func ListApplications(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := app.Store.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "store.list_applications", err)
			return
		}
		if apps == nil {
			apps = []model.Application{}
		}

		render.JSON(w, r, map[string]any{
			"applications": apps,
		})
	}
}

func Analytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := app.Store.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "store.list_applications", err)
			return
		}

		render.JSON(w, r, analytics.Summarize(apps, app.PassScore))
	}
}

func ExportXLSX(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := app.Store.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "store.list_applications", err)
			return
		}

		var buf bytes.Buffer
		if err := export.XLSX(&buf, apps, analytics.Summarize(apps, app.PassScore)); err != nil {
			httpx.LogInternalError(w, "export.xlsx", err)
			return
		}
		download(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", buf.Bytes())
	}
}

func ExportCSV(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := app.Store.List(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "store.list_applications", err)
			return
		}

		var buf bytes.Buffer
		if err := export.CSV(&buf, apps); err != nil {
			httpx.LogInternalError(w, "export.csv", err)
			return
		}
		download(w, "text/csv; charset=utf-8", "csv", buf.Bytes())
	}
}

func download(w http.ResponseWriter, contentType, ext string, body []byte) {
	name := fmt.Sprintf("applications_%s.%s", time.Now().UTC().Format("20060102_150405"), ext)
	w.Header().Set("content-type", contentType)
	w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Write(body)
}
