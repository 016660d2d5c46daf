package steamauth

import (
	"net/http"
	"net/url"
)

// The locale selector is stripped when rebuilding the return URL so the
// provider round trip does not pin the user to a language. Every other query
// parameter passes through, so the provider redirects back to the same
// logical page.
const localeParam = "lang"

// BuildReturnURL rebuilds the current request's URL as the OpenID return_to
// target: same path, same query minus the locale parameter. The scheme
// prefers what the request actually used (TLS or a
// proxy's X-Forwarded-Proto), falling back to http.
func BuildReturnURL(r *http.Request) string {
	q := url.Values{}
	for k, vs := range r.URL.Query() {
		if k == localeParam || hasOpenIDPrefix(k) {
			continue
		}
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	u := url.URL{
		Scheme:   requestScheme(r),
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Realm derives the OpenID trust root (scheme://host) for the request.
func Realm(r *http.Request) string {
	u := url.URL{Scheme: requestScheme(r), Host: r.Host}
	return u.String()
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}

// The provider appends its own openid.* parameters when redirecting back;
// those must not survive into the next return_to or verification loops.
func hasOpenIDPrefix(key string) bool {
	return len(key) > 7 && key[:7] == "openid."
}
