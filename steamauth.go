package steamauth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/dzteam/steamauth/openid"
)

// DefaultEmailDomain is the domain synthesized emails are minted under.
// Nobody receives mail there; the address only satisfies hosts that require
// one per account.
const DefaultEmailDomain = "steampowered.com"

// RelyingParty completes an OpenID provider round trip. openid.Consumer is
// the production implementation; tests substitute a stub.
type RelyingParty interface {
	Complete(r *http.Request, returnTo string) *openid.Response
}

// Authenticator drives Steam sign-in for a host application: it completes
// the OpenID exchange, resolves the SteamID, and reconciles it against the
// host's account store, reusing the linked local account for returning
// identities or synthesizing a provisional one for new identities.
//
// The host integrates through two calls mirroring its own login lifecycle:
// Authenticate during credential dispatch and FinalizeLogin after any
// successful local login. FinalizeLogin must be called for every login, not
// just Steam-mediated ones; it is a fast no-op when nothing is pending.
type Authenticator struct {
	// RelyingParty completes the OpenID exchange. When nil, Authenticate
	// returns nil so the host can fall through to other auth methods.
	RelyingParty RelyingParty

	// Repo maps SteamIDs to local accounts. Required.
	Repo AccountRepository

	// Profiles fetches display data for first-time identities. Optional;
	// when nil (or failing) provisioning degrades to the bare SteamID.
	Profiles ProfileFetcher

	// Pending carries the verified identity from Authenticate to
	// FinalizeLogin. Required for linking to happen.
	Pending PendingLinkStore

	// Session, when set, lets Handler() manage login cookies and lets
	// NewSessionPendingStore reuse the same manager.
	Session *scs.SessionManager

	// EmailDomain for synthesized addresses. Defaults to DefaultEmailDomain.
	EmailDomain string

	// Credentials issues provisional passwords. The zero value is usable.
	Credentials CredentialIssuer

	// JWT fields used by the HTTP glue, as in handlers.go.
	JwtIssuer    string
	JWTSecretKey string

	// How long a login session stays valid, in seconds. Defaults to 1 day.
	SessionTimeoutInSeconds int
}

// New returns an Authenticator with defaults filled in around the given
// repository and pending-link store.
func New(repo AccountRepository, pending PendingLinkStore) *Authenticator {
	return (&Authenticator{
		RelyingParty: openid.NewConsumer(),
		Repo:         repo,
		Pending:      pending,
	}).EnsureDefaults()
}

// EnsureDefaults fills zero-valued configuration. Safe to call repeatedly.
func (a *Authenticator) EnsureDefaults() *Authenticator {
	if a.EmailDomain == "" {
		a.EmailDomain = DefaultEmailDomain
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = "SteamAuth-Issuer"
	}
	a.ensureJWTSecret()
	return a
}

// Authenticate runs one full authentication attempt for the inbound request,
// which must be the provider's redirect back to us.
//
// Returns nil when no relying party is configured ("not applicable") so the
// host can try its other authentication plugins. Every other path yields an
// Outcome: provider cancel/failure and transport faults become Failure
// outcomes, never panics. On Success the host creates or logs in the local
// account and then calls FinalizeLogin.
func (a *Authenticator) Authenticate(r *http.Request) *Outcome {
	if a.RelyingParty == nil {
		return nil
	}
	ctx := r.Context()

	returnTo := BuildReturnURL(r)
	op := a.RelyingParty.Complete(r, returnTo)
	if op == nil {
		return Failure(NewAuthError(ErrCodeProtocolFailure, "verification produced no response"))
	}

	switch op.Status {
	case openid.StatusSuccess:
		// fall through below
	case openid.StatusCancelled:
		return Failure(NewAuthError(ErrCodeProtocolFailure, messageOr(op.Message, "verification cancelled by user")))
	default:
		return Failure(NewAuthError(ErrCodeProtocolFailure, messageOr(op.Message, "verification failed")))
	}

	id, err := ResolveSteamID(op.ClaimedID)
	if err != nil {
		slog.Warn("claimed identity had no usable identifier", "claimed_id", op.ClaimedID)
		return Failure(err.(*AuthError))
	}

	summary, err := a.Repo.FindLinkedAccount(ctx, id)
	if err != nil {
		return Failure(WrapAuthError(ErrCodeStorage, "account lookup failed", err))
	}
	if summary != nil {
		return a.returningOutcome(ctx, id, summary)
	}
	return a.firstLoginOutcome(ctx, id)
}

// returningOutcome handles an identity that already references a local
// account. The pending link records linked=true so FinalizeLogin does no
// repository work for this login.
func (a *Authenticator) returningOutcome(ctx context.Context, id SteamID, summary *LocalAccountSummary) *Outcome {
	a.putPending(ctx, PendingLink{SteamID: id, Linked: true})
	return &Outcome{
		Status:   StatusSuccess,
		SteamID:  id,
		Username: summary.Username,
		Email:    summary.Email,
		FullName: summary.FullName,
	}
}

// firstLoginOutcome provisions a record and synthesized credentials for an
// identity the repository has never linked.
func (a *Authenticator) firstLoginOutcome(ctx context.Context, id SteamID) *Outcome {
	profile := a.fetchProfile(ctx, id)

	exists, err := a.Repo.RecordExists(ctx, id)
	if err != nil {
		return Failure(WrapAuthError(ErrCodeStorage, "record lookup failed", err))
	}
	if !exists {
		if err := a.Repo.InsertRecord(ctx, id, profile); err != nil {
			// Pending state is deliberately left unset here: a failed
			// attempt must not trick a later login into linking.
			return Failure(WrapAuthError(ErrCodeStorage, "record insert failed", err))
		}
	}

	clear, hash, err := a.Credentials.IssuePair()
	if err != nil {
		return Failure(err.(*AuthError))
	}

	fullName := profile.RealName
	if fullName == "" {
		fullName = profile.PersonaName
	}
	if fullName == "" {
		fullName = string(id)
	}

	a.putPending(ctx, PendingLink{SteamID: id, Linked: false})
	return &Outcome{
		Status:        StatusSuccess,
		SteamID:       id,
		Username:      SynthesizeUsername(profile.PersonaName, id),
		Email:         string(id) + "@" + a.emailDomain(),
		FullName:      fullName,
		Password:      hash,
		PasswordClear: clear,
		FirstLogin:    true,
	}
}

// fetchProfile degrades to an empty snapshot on any fetch problem; a dead
// profile API must not block sign-in.
func (a *Authenticator) fetchProfile(ctx context.Context, id SteamID) *ProfileSnapshot {
	if a.Profiles == nil {
		return &ProfileSnapshot{}
	}
	profile, err := a.Profiles.Fetch(ctx, id)
	if err != nil || profile == nil {
		slog.Warn("profile fetch failed, continuing with bare identifier", "steamid", id, "err", err)
		return &ProfileSnapshot{}
	}
	return profile
}

// FinalizeLogin links a freshly provisioned record to the local account the
// host just logged in. The host calls this after every successful login;
// when nothing is pending it does nothing. The pending link is cleared
// unconditionally so it can never be replayed by an unrelated later login.
func (a *Authenticator) FinalizeLogin(ctx context.Context, localRef string) error {
	if a.Pending == nil {
		return nil
	}
	link, err := a.Pending.Get(ctx)
	if err != nil || link == nil {
		return err
	}
	defer func() {
		if err := a.Pending.Clear(ctx); err != nil {
			slog.Warn("failed to clear pending link", "err", err)
		}
	}()

	if link.Linked {
		return nil
	}
	if err := a.Repo.LinkRecord(ctx, link.SteamID, localRef); err != nil {
		return WrapAuthError(ErrCodeStorage, "record link failed", err)
	}
	slog.Info("linked steam identity to local account", "steamid", link.SteamID, "local_ref", localRef)
	return nil
}

func (a *Authenticator) putPending(ctx context.Context, link PendingLink) {
	if a.Pending == nil {
		return
	}
	if err := a.Pending.Put(ctx, link); err != nil {
		slog.Warn("failed to record pending link", "steamid", link.SteamID, "err", err)
	}
}

func (a *Authenticator) emailDomain() string {
	if a.EmailDomain != "" {
		return a.EmailDomain
	}
	return DefaultEmailDomain
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
