package steamauth

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dzteam/steamauth/openid"
)

// LoginFunc is the host's half of the login contract: given a successful
// Outcome it creates or looks up the local account, establishes whatever
// local session the host uses, and returns the account reference that
// FinalizeLogin will bind the Steam record to.
type LoginFunc func(o *Outcome, w http.ResponseWriter, r *http.Request) (localRef string, err error)

// Name of the cookie remembering where to send the user after login, kept
// deliberately short-lived.
const callbackURLCookie = "steamCallbackURL"

// Session key flagging the first login with a freshly linked identity, so
// the host can greet new accounts once.
const sessionKeyFirstConnect = "steamauth.firstConnect"

// OnLogin must be set before Handler() is used.
var errNoLoginFunc = fmt.Errorf("steamauth: OnLogin not configured")

// HTTPAuth wires an Authenticator into a host's mux: /login redirects to the
// provider, /callback completes the exchange and finalizes linking, /logout
// clears the session. Hosts that dispatch authentication themselves can skip
// this and call Authenticate/FinalizeLogin directly.
type HTTPAuth struct {
	Auth *Authenticator

	// OnLogin turns a Success outcome into a local account. Required.
	OnLogin LoginFunc

	// Endpoint of the OpenID provider. Defaults to openid.SteamEndpoint.
	Endpoint string

	// FailureURL is where failed attempts are redirected. Defaults to "/".
	FailureURL string

	mux *http.ServeMux
}

func (h *HTTPAuth) Handler() http.Handler {
	return h.setupRoutes().mux
}

func (h *HTTPAuth) setupRoutes() *HTTPAuth {
	if h.mux == nil {
		h.mux = http.NewServeMux()
		h.mux.HandleFunc("/login", h.handleLogin)
		h.mux.HandleFunc("/callback", h.handleCallback)
		h.mux.HandleFunc("/logout", h.handleLogout)
	}
	return h
}

func (h *HTTPAuth) endpoint() string {
	if h.Endpoint != "" {
		return h.Endpoint
	}
	if c, ok := h.Auth.RelyingParty.(*openid.Consumer); ok && c.Endpoint != "" {
		return c.Endpoint
	}
	return openid.SteamEndpoint
}

func (h *HTTPAuth) failureURL() string {
	if h.FailureURL != "" {
		return h.FailureURL
	}
	return "/"
}

// handleLogin sends the user to the provider. A callbackURL query param is
// remembered in a short-lived cookie so the callback can land the user back
// where they started.
func (h *HTTPAuth) handleLogin(w http.ResponseWriter, r *http.Request) {
	if callbackURL := r.URL.Query().Get("callbackURL"); callbackURL != "" {
		http.SetCookie(w, &http.Cookie{
			Name:    callbackURLCookie,
			Value:   callbackURL,
			Path:    "/",
			Expires: time.Now().Add(time.Hour),
			MaxAge:  120, // keep this short
		})
	}

	cb := url.URL{
		Scheme: requestScheme(r),
		Host:   r.Host,
		Path:   strings.TrimSuffix(r.URL.Path, "/login") + "/callback",
	}
	http.Redirect(w, r, openid.AuthURL(h.endpoint(), Realm(r), cb.String()), http.StatusFound)
}

// handleCallback is the provider's redirect target. It drives the full
// authenticate → host login → finalize sequence.
func (h *HTTPAuth) handleCallback(w http.ResponseWriter, r *http.Request) {
	outcome := h.Auth.Authenticate(r)
	if outcome == nil {
		http.Error(w, "steam login not configured", http.StatusNotFound)
		return
	}
	if !outcome.Success() {
		slog.Info("steam authentication failed", "code", outcome.Err.Code, "msg", outcome.Err.Message)
		http.Redirect(w, r, h.failureURL(), http.StatusTemporaryRedirect)
		return
	}

	if h.OnLogin == nil {
		http.Error(w, errNoLoginFunc.Error(), http.StatusInternalServerError)
		return
	}
	localRef, err := h.OnLogin(outcome, w, r)
	if err != nil {
		log.Println("host login failed: ", err)
		http.Redirect(w, r, h.failureURL(), http.StatusTemporaryRedirect)
		return
	}

	if err := h.Auth.FinalizeLogin(r.Context(), localRef); err != nil {
		// The user is authenticated either way; a failed link only means the
		// next Steam login provisions again instead of reusing the account.
		slog.Warn("finalize after login failed", "steamid", outcome.SteamID, "err", err)
	} else if outcome.FirstLogin && h.Auth.Session != nil {
		h.Auth.Session.Put(r.Context(), sessionKeyFirstConnect, true)
	}

	h.Auth.setLoggedInUser(localRef, w, r)
	http.Redirect(w, r, h.popCallbackURL(w, r), http.StatusFound)
}

func (h *HTTPAuth) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.Auth.setLoggedInUser("", w, r)
	toUrl := r.URL.Query().Get("to")
	if toUrl == "" {
		fmt.Fprintf(w, "Logged Out")
		return
	}
	http.Redirect(w, r, toUrl, http.StatusFound)
}

// popCallbackURL reads and deletes the remembered callback URL so it cannot
// steer a later, unrelated login.
func (h *HTTPAuth) popCallbackURL(w http.ResponseWriter, r *http.Request) string {
	callbackURL := "/"
	if cookie, _ := r.Cookie(callbackURLCookie); cookie != nil && cookie.Value != "" {
		callbackURL = cookie.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:   callbackURLCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	return callbackURL
}

// FirstConnect reports and clears the first-login marker set when a new
// identity was linked during this session.
func (a *Authenticator) FirstConnect(r *http.Request) bool {
	if a.Session == nil {
		return false
	}
	return a.Session.PopBool(r.Context(), sessionKeyFirstConnect)
}

func (a *Authenticator) ensureJWTSecret() {
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("STEAMAUTH_JWT_SECRET_KEY"))
		if a.JWTSecretKey == "" {
			a.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
}

// setLoggedInUser sets (or, with an empty ref, clears) the logged-in account
// on the session and the auth token cookie. Pass "" to log out.
func (a *Authenticator) setLoggedInUser(localRef string, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()

	if localRef == "" {
		if a.Session != nil {
			if err := a.Session.Clear(r.Context()); err != nil {
				slog.Warn("error clearing session ", "err", err)
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:    AuthTokenCookieName,
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Now(),
		})
		return ""
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": localRef,
		"iss": a.JwtIssuer,
		"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
	if err != nil {
		slog.Info("error signing token", "err", err)
		return ""
	}

	if a.Session != nil {
		a.Session.Put(r.Context(), "loggedInUserId", localRef)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    AuthTokenCookieName,
		Value:   tokenString,
		Path:    "/",
		Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
		MaxAge:  a.SessionTimeoutInSeconds,
	})
	return tokenString
}

// VerifyAuthToken parses and validates a token issued by setLoggedInUser,
// returning the local account reference it names.
func (a *Authenticator) VerifyAuthToken(tokenString string) (localRef string, err error) {
	a.ensureJWTSecret()
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	} else if err != nil {
		return "", err
	}
	return sub, nil
}
