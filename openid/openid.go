// Package openid implements the relying-party half of the OpenID 2.0
// checkid_setup flow, which is the only federation protocol Steam speaks.
// There is no discovery and no association: the provider endpoint is fixed
// and assertions are verified statelessly with check_authentication.
package openid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SteamEndpoint is the Steam community OpenID 2.0 provider endpoint.
const SteamEndpoint = "https://steamcommunity.com/openid/login"

// Namespace is the OpenID 2.0 protocol namespace.
const Namespace = "http://specs.openid.net/auth/2.0"

// IdentifierSelect asks the provider to choose the identity itself; Steam
// fills in the user's claimed_id after they log in.
const IdentifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"

// Status of a completed provider round trip.
type Status int

const (
	StatusFailure Status = iota
	StatusCancelled
	StatusSuccess
)

// Response is the normalized result of completing an OpenID exchange.
type Response struct {
	Status    Status
	ClaimedID string // verified identity URL, set only on success
	Message   string // provider-supplied error text, if any
}

// AuthURL builds the checkid_setup redirect that sends the user to the
// provider. returnTo is where the provider redirects back; realm is the
// trust root shown to the user (usually scheme://host of returnTo).
func AuthURL(endpoint, realm, returnTo string) string {
	q := url.Values{}
	q.Set("openid.ns", Namespace)
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.claimed_id", IdentifierSelect)
	q.Set("openid.identity", IdentifierSelect)
	q.Set("openid.return_to", returnTo)
	q.Set("openid.realm", realm)
	return endpoint + "?" + q.Encode()
}

// Consumer completes OpenID exchanges against one provider endpoint.
type Consumer struct {
	// Endpoint of the provider. Defaults to SteamEndpoint.
	Endpoint string

	// Client used for the check_authentication round trip. Defaults to a
	// client with a 5 second timeout; provider verification is on the
	// interactive login path and must not hang the request.
	Client *http.Client
}

func NewConsumer() *Consumer {
	return &Consumer{
		Endpoint: SteamEndpoint,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Consumer) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return SteamEndpoint
}

func (c *Consumer) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

// Fields the provider must have signed for the assertion to be trusted.
var requiredSigned = []string{"op_endpoint", "return_to", "response_nonce", "assoc_handle", "claimed_id", "identity"}

// Complete validates the provider's redirect back to us. It never panics
// and never returns a Go error for provider-side problems; every outcome is
// expressed as a Response so callers can treat the provider uniformly.
func (c *Consumer) Complete(r *http.Request, returnTo string) *Response {
	q := r.URL.Query()

	switch q.Get("openid.mode") {
	case "cancel":
		return &Response{Status: StatusCancelled, Message: "verification cancelled"}
	case "error":
		return &Response{Status: StatusFailure, Message: q.Get("openid.error")}
	case "id_res":
		return c.verify(r.Context(), q, returnTo)
	default:
		return &Response{Status: StatusFailure, Message: "unexpected openid.mode " + q.Get("openid.mode")}
	}
}

func (c *Consumer) verify(ctx context.Context, q url.Values, returnTo string) *Response {
	if q.Get("openid.ns") != Namespace {
		return &Response{Status: StatusFailure, Message: "unsupported openid namespace"}
	}

	// The return_to in the assertion must match what we asked for, ignoring
	// query params the provider appended on the way back.
	if !sameReturnTo(q.Get("openid.return_to"), returnTo) {
		return &Response{Status: StatusFailure, Message: "return_to mismatch"}
	}

	signed := strings.Split(q.Get("openid.signed"), ",")
	for _, field := range requiredSigned {
		if !contains(signed, field) {
			return &Response{Status: StatusFailure, Message: "required field not signed: " + field}
		}
	}

	claimedID := q.Get("openid.claimed_id")
	if claimedID == "" {
		return &Response{Status: StatusFailure, Message: "assertion carries no claimed_id"}
	}

	ok, err := c.checkAuthentication(ctx, q)
	if err != nil {
		return &Response{Status: StatusFailure, Message: fmt.Sprintf("provider verification failed: %v", err)}
	}
	if !ok {
		return &Response{Status: StatusFailure, Message: "provider rejected assertion"}
	}

	return &Response{Status: StatusSuccess, ClaimedID: claimedID}
}

// checkAuthentication replays the assertion to the provider in
// check_authentication mode (stateless verification, OpenID 2.0 §11.4.2).
// The provider answers in key:value form with is_valid:true|false.
func (c *Consumer) checkAuthentication(ctx context.Context, assertion url.Values) (bool, error) {
	form := url.Values{}
	for k, vs := range assertion {
		if strings.HasPrefix(k, "openid.") && len(vs) > 0 {
			form.Set(k, vs[0])
		}
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client().Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, err
	}
	return parseKeyValue(string(body))["is_valid"] == "true", nil
}

// parseKeyValue parses the newline-delimited key:value response format.
func parseKeyValue(body string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		k, v, found := strings.Cut(line, ":")
		if found {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func sameReturnTo(got, want string) bool {
	gu, err1 := url.Parse(got)
	wu, err2 := url.Parse(want)
	if err1 != nil || err2 != nil {
		return false
	}
	return gu.Scheme == wu.Scheme && gu.Host == wu.Host && gu.Path == wu.Path
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
