// Package steamauth lets a host application authenticate users through
// Steam's OpenID 2.0 endpoint and reconcile the verified SteamID against the
// host's own account store.
//
// # Architecture
//
// Authentication is a two-phase handshake split across two requests:
//
// Authenticate completes the provider round trip on the callback request,
// resolves the 64-bit SteamID out of the verified identity URL, and returns
// an Outcome. A returning identity (one whose record already references a
// local account) yields that account's username, email and full name. A new
// identity yields synthesized credentials: a username derived from the Steam
// persona name, an email minted under the provider domain, and a random
// one-time password, plus a pending link noted in the session.
//
// FinalizeLogin runs after the host has logged the account in (possibly
// having just created it from the Outcome). If the session carries a pending
// unlinked identity, the record is bound to the local account once and
// never rebound. The pending state is cleared unconditionally so it cannot
// leak into an unrelated later login.
//
// # Basic Usage
//
// Wire up a repository, a pending-link store and the profile fetcher:
//
//	repo := fs.NewAccountRepository("/path/to/storage")
//	sessions := scs.New()
//	auth := steamauth.New(repo, steamauth.NewSessionPendingStore(sessions))
//	auth.Profiles = steamapi.NewClient(os.Getenv("STEAM_API_KEY"))
//
// Hosts with their own authentication dispatch call Authenticate from their
// credential handler and FinalizeLogin from their after-login hook (the
// latter for every login; it is a no-op when nothing is pending). Hosts
// without one mount the bundled HTTP glue:
//
//	httpAuth := &steamauth.HTTPAuth{
//	    Auth: auth,
//	    OnLogin: func(o *steamauth.Outcome, w http.ResponseWriter, r *http.Request) (string, error) {
//	        // create or look up the local account; return its id
//	        return myAccounts.Ensure(o.Username, o.Email, o.FullName, o.Password)
//	    },
//	}
//	mux.Handle("/auth/steam/", http.StripPrefix("/auth/steam", httpAuth.Handler()))
//
// # Store Implementations
//
// The stores/fs backend keeps JSON files and suits development and small
// sites; stores/gorm and stores/gae back the repository with a relational
// database or Google Cloud Datastore. stores/redis provides a Redis-backed
// pending-link store for hosts that keep sessions there.
//
// # Security
//
// Assertions are verified statelessly against the provider with OpenID 2.0
// check_authentication. Provisional passwords are drawn uniformly from a
// 62-symbol alphabet with crypto/rand and returned both clear (one-time
// display) and bcrypt-hashed; hosts should force a reset on first real use.
package steamauth
