package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/oauth"
	"github.com/gofrs/uuid"

	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/ratelimit"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	refreshCookieAge   = 60 * 60 * 24 * 7
)

// Admin middleware to check for the 'admin' role in an OAuth token.
func Admin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), admin).Handler(next)
	}
}

func admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)

		isAdmin := false
		if rolesClaim, ok := claims["roles"]; ok {
			roles := strings.Split(rolesClaim, ",")
			for _, role := range roles {
				if role == "admin" {
					isAdmin = true
					break
				}
			}
		}

		if !isAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CookieAuth moves the access token cookie into the authorization header.
// When the wrapped handler answers 401 it redeems the refresh token cookie
// and retries; without a usable refresh token it redirects to loginPath.
func CookieAuth(bearerServer *oauth.BearerServer, loginPath string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				h.ServeHTTP(w, r)
				return
			}

			token, err := r.Cookie(AccessTokenCookie)
			if err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				buf := httpx.NewResponseBuffer()
				h.ServeHTTP(buf, r)
				if buf.Status() != http.StatusUnauthorized {
					buf.Flush(w)
					return
				}
			}

			loginLocation := loginPath + "?goto=" + url.QueryEscape(r.RequestURI)

			refreshToken, err := r.Cookie(RefreshTokenCookie)
			if err != nil {
				http.Redirect(w, r, loginLocation, http.StatusSeeOther)
				return
			}

			resp := RedeemRefreshToken(r.Context(), bearerServer, refreshToken.Value)
			if resp.Status() == http.StatusUnauthorized {
				ClearTokenCookies(w)
				http.Redirect(w, r, loginLocation, http.StatusSeeOther)
				return
			}
			if resp.Status() != http.StatusOK {
				httpx.LogStatus(w, resp.Status(), log.WarnLevel, "cookie_auth.refresh")
				return
			}

			access, err := SetTokenCookies(w, resp.Body())
			if err != nil {
				httpx.LogInternalError(w, "cookie_auth.refresh.parse", err)
				return
			}

			r.Header.Set("authorization", "Bearer "+access)
			h.ServeHTTP(w, r)
		})
	}
}

// RedeemRefreshToken runs a refresh_token grant against the bearer server.
func RedeemRefreshToken(ctx context.Context, bearerServer *oauth.BearerServer, refreshToken string) httpx.ResponseBuffer {
	return grant(ctx, bearerServer, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

// PasswordGrant runs a password grant against the bearer server.
func PasswordGrant(r *http.Request, bearerServer *oauth.BearerServer, username, password string) httpx.ResponseBuffer {
	return grant(r.Context(), bearerServer, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	})
}

// oauth.BearerServer only takes its input as a form request
func grant(ctx context.Context, bearerServer *oauth.BearerServer, body url.Values) httpx.ResponseBuffer {
	resp := httpx.NewResponseBuffer()

	encoded := body.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", strings.NewReader(encoded))
	if err != nil {
		resp.WriteHeader(http.StatusInternalServerError)
		return resp
	}
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("content-length", strconv.Itoa(len(encoded)))

	bearerServer.UserCredentials(resp, req)
	return resp
}

// SetTokenCookies stores the tokens of a bearer server response as cookies
// and returns the access token.
func SetTokenCookies(w http.ResponseWriter, tokenResponse []byte) (string, error) {
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(tokenResponse, &body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", errors.New("token response without access_token")
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     AccessTokenCookie,
		Value:    body.AccessToken,
		MaxAge:   int(body.ExpiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     RefreshTokenCookie,
		Value:    body.RefreshToken,
		MaxAge:   refreshCookieAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return body.AccessToken, nil
}

func ClearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Path:     "/",
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// RateLimit answers 429 once limiter refuses the key derived from the request.
func RateLimit(limiter ratelimit.Limiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), key(r)) {
				w.Header().Set("Retry-After", "60")
				httpx.LogStatus(w, http.StatusTooManyRequests, log.InfoLevel, "rate_limit."+ClientIP(r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP strips the port from RemoteAddr, which middleware.RealIP may
// already have replaced.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestID tags every request with a UUID, reusing an incoming
// X-Request-Id, so that middleware.Logger prints it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			uid, err := uuid.NewV4()
			if err != nil {
				httpx.LogInternalError(w, "request_id", err)
				return
			}
			id = uid.String()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
