package routes

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/mbolis/quick-apply/httpx"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = map[string]*template.Template{}

func init() {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	for _, name := range []string{"apply.html", "submitted.html", "login.html", "admin.html"} {
		pages[name] = template.Must(
			template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name),
		)
	}
}

// renderPage executes the named page into a buffer so that template errors
// still produce a clean 500.
func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, name, data); err != nil {
		httpx.LogInternalError(w, "template."+name, err)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
