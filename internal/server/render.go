package server

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/milckywayy/ISOD-NewsAnalytics/internal/counter"
	"github.com/milckywayy/ISOD-NewsAnalytics/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type loginPage struct {
	Message string
}

type dashboardPage struct {
	DisplayName string
	News        []counter.NewsCounter
	Snippet     string
}

func render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).Error("failed to render template", "template", name, "error", err)
	}
}

func renderLogin(w http.ResponseWriter, r *http.Request, status int, message string) {
	render(w, r, status, "login.html", loginPage{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// trackingSnippet is the tag admins paste into news pages.
func trackingSnippet(trackURL string) string {
	return `<script>fetch("` + trackURL + `?title=" + encodeURIComponent(document.title));</script>`
}
