package routes

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/routes/middlewares"
)

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Login exchanges basic auth credentials for a token pair.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		resp := middlewares.PasswordGrant(r, app.BearerServer, user, pass)
		if resp.Status() == http.StatusUnauthorized {
			log.WithFields(log.Fields{"user": user, "ip": middlewares.ClientIP(r)}).Info("login.failed")
		}
		resp.Flush(w)
	}
}

// Refresh redeems the token sent as "Authorization: Refresh <token>".
func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		resp := middlewares.RedeemRefreshToken(r.Context(), app.BearerServer, match[1])
		resp.Flush(w)
	}
}

type loginPage struct {
	Goto  string
	Error string
}

func AdminLoginForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, http.StatusOK, "login.html", loginPage{Goto: safeGoto(r.URL.Query().Get("goto"))})
	}
}

func AdminLogin(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		user := r.PostForm.Get("username")
		page := loginPage{Goto: safeGoto(r.PostForm.Get("goto"))}

		resp := middlewares.PasswordGrant(r, app.BearerServer, user, r.PostForm.Get("password"))
		switch resp.Status() {
		case http.StatusOK:
		case http.StatusUnauthorized:
			log.WithFields(log.Fields{"user": user, "ip": middlewares.ClientIP(r)}).Info("admin_login.failed")
			page.Error = "Invalid user name or password."
			renderPage(w, http.StatusUnauthorized, "login.html", page)
			return
		default:
			httpx.LogStatus(w, resp.Status(), log.WarnLevel, "admin_login.grant")
			return
		}

		if _, err := middlewares.SetTokenCookies(w, resp.Body()); err != nil {
			httpx.LogInternalError(w, "admin_login.cookies", err)
			return
		}
		http.Redirect(w, r, page.Goto, http.StatusSeeOther)
	}
}

func AdminLogout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middlewares.ClearTokenCookies(w)
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
	}
}

// safeGoto only follows local admin paths.
func safeGoto(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/admin") || strings.HasPrefix(u.Path, "/admin/login") {
		return "/admin"
	}
	return u.RequestURI()
}
