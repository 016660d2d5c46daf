package steamauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// AuthTokenCookieName is the cookie carrying the signed login token issued
// after a successful callback.
const AuthTokenCookieName = "SteamAuthToken"

type userParamNameKey string

// Middleware extracts the logged-in local account reference from a request,
// checking the session first and falling back to the auth token cookie or
// Authorization header.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (localRef string, err error)
}

// EnsureReasonableDefaults fills in zero-valued config.
func (m *Middleware) EnsureReasonableDefaults() {
	if m.UserParamName == "" {
		m.UserParamName = "loggedInUserId"
	}
	if m.CallbackURLParam == "" {
		m.CallbackURLParam = "callbackURL"
	}
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
	if m.AuthTokenCookieName == "" {
		m.AuthTokenCookieName = AuthTokenCookieName
	}
}

// GetLoggedInUserId returns the logged-in account reference for the request,
// or "" when nobody is logged in.
func (m *Middleware) GetLoggedInUserId(r *http.Request) string {
	if v := r.Context().Value(userParamNameKey(m.UserParamName)); v != nil {
		if localRef := v.(string); localRef != "" {
			return localRef
		}
	}

	if m.SessionGetter != nil {
		if v := m.SessionGetter(r, m.UserParamName); v != nil && v != "" {
			return v.(string)
		}
	}

	if m.VerifyToken == nil {
		return ""
	}
	tokens := m.candidateTokens(r)
	for _, token := range tokens {
		if localRef, err := m.VerifyToken(token); err == nil && localRef != "" {
			return localRef
		}
	}
	return ""
}

func (m *Middleware) candidateTokens(r *http.Request) []string {
	var tokens []string
	for _, v := range r.Header.Values(m.AuthTokenHeaderName) {
		tokens = append(tokens, strings.TrimPrefix(v, "Bearer "))
	}
	for _, cookie := range r.CookiesNamed(m.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			tokens = append(tokens, cookie.Value)
		}
	}
	return tokens
}

// ExtractUser loads the logged-in account reference into the request context
// for downstream handlers. It never redirects or rejects.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.setLoggedInUserId(m.GetLoggedInUserId(r), r))
	})
}

// EnsureUser is ExtractUser plus enforcement: anonymous requests are
// redirected to the login URL (when GetRedirURL is set) or rejected with 401.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		localRef := m.GetLoggedInUserId(r)
		if localRef == "" {
			redirUrl := ""
			if m.GetRedirURL != nil {
				redirUrl = m.GetRedirURL(r)
			}
			if redirUrl != "" {
				encodedUrl := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
				http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", redirUrl, m.CallbackURLParam, encodedUrl), http.StatusFound)
			} else {
				http.Error(w, "Login Required", http.StatusUnauthorized)
			}
			return
		}
		next.ServeHTTP(w, m.setLoggedInUserId(localRef, r))
	})
}

// setLoggedInUserId makes the account reference available to downstream
// handlers as a request-scoped value.
func (m *Middleware) setLoggedInUserId(localRef string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), userParamNameKey(m.UserParamName), localRef)
	return r.WithContext(ctx)
}
