package steamauth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	sa "github.com/dzteam/steamauth"
	"github.com/dzteam/steamauth/openid"
)

// =============================================================================
// Fakes
// =============================================================================

type stubRelyingParty struct {
	resp *openid.Response
}

func (s *stubRelyingParty) Complete(r *http.Request, returnTo string) *openid.Response {
	return s.resp
}

type fakeRepo struct {
	mu       sync.Mutex
	records  map[sa.SteamID]*sa.LinkedAccount
	accounts map[string]*sa.LocalAccountSummary

	inserts int
	links   int

	failInsert bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:  map[sa.SteamID]*sa.LinkedAccount{},
		accounts: map[string]*sa.LocalAccountSummary{},
	}
}

func (f *fakeRepo) FindLinkedAccount(ctx context.Context, id sa.SteamID) (*sa.LocalAccountSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.LocalRef == "" {
		return nil, nil
	}
	return f.accounts[record.LocalRef], nil
}

func (f *fakeRepo) RecordExists(ctx context.Context, id sa.SteamID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[id]
	return ok, nil
}

func (f *fakeRepo) InsertRecord(ctx context.Context, id sa.SteamID, profile *sa.ProfileSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return fmt.Errorf("disk on fire")
	}
	f.inserts++
	if _, ok := f.records[id]; ok {
		return nil
	}
	f.records[id] = &sa.LinkedAccount{SteamID: id, PersonaName: profile.PersonaName}
	return nil
}

func (f *fakeRepo) LinkRecord(ctx context.Context, id sa.SteamID, localRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links++
	record, ok := f.records[id]
	if !ok {
		return fmt.Errorf("no record for %s", id)
	}
	if record.LocalRef != "" {
		return nil
	}
	record.LocalRef = localRef
	return nil
}

type fakeFetcher struct {
	profile *sa.ProfileSnapshot
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, id sa.SteamID) (*sa.ProfileSnapshot, error) {
	f.calls++
	return f.profile, f.err
}

func successResponse(claimedID string) *openid.Response {
	return &openid.Response{Status: openid.StatusSuccess, ClaimedID: claimedID}
}

func newTestAuthenticator(repo *fakeRepo, fetcher *fakeFetcher, resp *openid.Response) (*sa.Authenticator, *sa.MemoryPendingStore) {
	pending := &sa.MemoryPendingStore{}
	auth := &sa.Authenticator{
		RelyingParty: &stubRelyingParty{resp: resp},
		Repo:         repo,
		Profiles:     fetcher,
		Pending:      pending,
	}
	auth.EnsureDefaults()
	return auth, pending
}

func callbackRequest() *http.Request {
	return httptest.NewRequest("GET", "http://example.com/auth/steam/callback", nil)
}

// =============================================================================
// Scenarios
// =============================================================================

// Scenario A: first-ever sign-in with a verified identity provisions a
// record, synthesized credentials, and a pending (unlinked) link.
func TestAuthenticateFirstLogin(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{profile: &sa.ProfileSnapshot{PersonaName: "Gordon Freeman", RealName: "Gordon"}}
	auth, pending := newTestAuthenticator(repo, fetcher,
		successResponse("https://provider/openid?id=76561198000000000"))

	outcome := auth.Authenticate(callbackRequest())
	if !outcome.Success() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.SteamID != "76561198000000000" {
		t.Errorf("SteamID = %q", outcome.SteamID)
	}
	if outcome.Username != "gordon_freeman_000" {
		t.Errorf("Username = %q, want gordon_freeman_000", outcome.Username)
	}
	if outcome.Email != "76561198000000000@steampowered.com" {
		t.Errorf("Email = %q", outcome.Email)
	}
	if outcome.FullName != "Gordon" {
		t.Errorf("FullName = %q, want the real name", outcome.FullName)
	}
	if outcome.PasswordClear == "" || outcome.Password == "" {
		t.Error("expected a synthesized credential pair")
	}
	if !outcome.FirstLogin {
		t.Error("expected FirstLogin")
	}

	if repo.inserts != 1 {
		t.Errorf("inserts = %d, want 1", repo.inserts)
	}
	link, _ := pending.Get(context.Background())
	if link == nil || link.Linked || link.SteamID != outcome.SteamID {
		t.Errorf("pending link = %+v, want unlinked for %s", link, outcome.SteamID)
	}
}

// Scenario B: after finalize-after-login has bound the record, the same
// identity authenticates straight onto the local account, with no profile
// fetch and no writes.
func TestAuthenticateReturningIdentity(t *testing.T) {
	repo := newFakeRepo()
	repo.records["76561198000000000"] = &sa.LinkedAccount{SteamID: "76561198000000000", LocalRef: "u1"}
	repo.accounts["u1"] = &sa.LocalAccountSummary{ID: "u1", Username: "gordon", Email: "gordon@example.com", FullName: "Gordon Freeman"}

	fetcher := &fakeFetcher{}
	auth, pending := newTestAuthenticator(repo, fetcher,
		successResponse("https://steamcommunity.com/openid/id/76561198000000000"))

	outcome := auth.Authenticate(callbackRequest())
	if !outcome.Success() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Username != "gordon" || outcome.Email != "gordon@example.com" || outcome.FullName != "Gordon Freeman" {
		t.Errorf("outcome = %+v, want the stored account fields", outcome)
	}
	if outcome.FirstLogin {
		t.Error("returning identity must not report FirstLogin")
	}
	if fetcher.calls != 0 {
		t.Errorf("profile fetched %d times for a returning identity", fetcher.calls)
	}
	if repo.inserts != 0 {
		t.Errorf("inserts = %d, want 0", repo.inserts)
	}
	link, _ := pending.Get(context.Background())
	if link == nil || !link.Linked {
		t.Errorf("pending link = %+v, want linked=true", link)
	}
}

// Scenario C: provider cancel yields a failure outcome and leaves the
// pending state untouched.
func TestAuthenticateCancel(t *testing.T) {
	repo := newFakeRepo()
	auth, pending := newTestAuthenticator(repo, &fakeFetcher{},
		&openid.Response{Status: openid.StatusCancelled})

	outcome := auth.Authenticate(callbackRequest())
	if outcome.Success() {
		t.Fatal("cancel must not authenticate")
	}
	if outcome.Err == nil || outcome.Err.Code != sa.ErrCodeProtocolFailure {
		t.Errorf("Err = %+v, want code %s", outcome.Err, sa.ErrCodeProtocolFailure)
	}
	if outcome.Err.Message == "" {
		t.Error("cancel failure should carry a message")
	}
	if link, _ := pending.Get(context.Background()); link != nil {
		t.Errorf("pending link set on cancel: %+v", link)
	}
}

// Scenario D: a dead profile API degrades to the bare identifier but the
// sign-in still succeeds.
func TestAuthenticateProfileFetchFailure(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{err: fmt.Errorf("connection refused")}
	auth, _ := newTestAuthenticator(repo, fetcher,
		successResponse("https://steamcommunity.com/openid/id/76561198000000000"))

	outcome := auth.Authenticate(callbackRequest())
	if !outcome.Success() {
		t.Fatalf("expected degraded success, got %+v", outcome)
	}
	if outcome.Username != "76561198000000000" {
		t.Errorf("Username = %q, want the bare identifier", outcome.Username)
	}
	if outcome.FullName != "76561198000000000" {
		t.Errorf("FullName = %q, want the bare identifier", outcome.FullName)
	}
	if repo.inserts != 1 {
		t.Errorf("inserts = %d, want 1 even without a profile", repo.inserts)
	}
}

func TestAuthenticateProviderFailure(t *testing.T) {
	auth, _ := newTestAuthenticator(newFakeRepo(), &fakeFetcher{},
		&openid.Response{Status: openid.StatusFailure, Message: "signature mismatch"})

	outcome := auth.Authenticate(callbackRequest())
	if outcome.Success() {
		t.Fatal("provider failure must not authenticate")
	}
	if !strings.Contains(outcome.Err.Message, "signature mismatch") {
		t.Errorf("failure should carry the provider message, got %q", outcome.Err.Message)
	}
}

func TestAuthenticateBadIdentityURL(t *testing.T) {
	auth, pending := newTestAuthenticator(newFakeRepo(), &fakeFetcher{},
		successResponse("https://steamcommunity.com/openid/id/"))

	outcome := auth.Authenticate(callbackRequest())
	if outcome.Success() {
		t.Fatal("identity URL without digits must not authenticate")
	}
	if outcome.Err.Code != sa.ErrCodeIdentityParse {
		t.Errorf("Err.Code = %s, want %s", outcome.Err.Code, sa.ErrCodeIdentityParse)
	}
	if link, _ := pending.Get(context.Background()); link != nil {
		t.Errorf("pending link set on parse failure: %+v", link)
	}
}

func TestAuthenticateNotApplicable(t *testing.T) {
	auth := &sa.Authenticator{Repo: newFakeRepo()}
	auth.EnsureDefaults()
	if outcome := auth.Authenticate(callbackRequest()); outcome != nil {
		t.Errorf("expected nil outcome without a relying party, got %+v", outcome)
	}
}

func TestAuthenticateStorageErrorLeavesPendingUnset(t *testing.T) {
	repo := newFakeRepo()
	repo.failInsert = true
	auth, pending := newTestAuthenticator(repo, &fakeFetcher{profile: &sa.ProfileSnapshot{PersonaName: "x"}},
		successResponse("https://steamcommunity.com/openid/id/76561198000000000"))

	outcome := auth.Authenticate(callbackRequest())
	if outcome.Success() {
		t.Fatal("storage error must fail the attempt")
	}
	if outcome.Err.Code != sa.ErrCodeStorage {
		t.Errorf("Err.Code = %s, want %s", outcome.Err.Code, sa.ErrCodeStorage)
	}
	if link, _ := pending.Get(context.Background()); link != nil {
		t.Errorf("pending link must stay unset on storage error, got %+v", link)
	}
}

// =============================================================================
// Finalize-after-login
// =============================================================================

func TestFinalizeLoginLinksOnce(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{profile: &sa.ProfileSnapshot{PersonaName: "Gordon"}}
	auth, pending := newTestAuthenticator(repo, fetcher,
		successResponse("https://steamcommunity.com/openid/id/76561198000000000"))
	ctx := context.Background()

	if outcome := auth.Authenticate(callbackRequest()); !outcome.Success() {
		t.Fatalf("authenticate failed: %+v", outcome)
	}
	if err := auth.FinalizeLogin(ctx, "u1"); err != nil {
		t.Fatalf("FinalizeLogin failed: %v", err)
	}

	record := repo.records["76561198000000000"]
	if record.LocalRef != "u1" {
		t.Errorf("LocalRef = %q, want u1", record.LocalRef)
	}
	if link, _ := pending.Get(ctx); link != nil {
		t.Errorf("pending link survived finalize: %+v", link)
	}

	// A second finalize (from an unrelated later login) must be a no-op.
	if err := auth.FinalizeLogin(ctx, "u2"); err != nil {
		t.Fatalf("second FinalizeLogin failed: %v", err)
	}
	if record.LocalRef != "u1" {
		t.Errorf("LocalRef rebound to %q", record.LocalRef)
	}
}

func TestFinalizeLoginNoopWhenNothingPending(t *testing.T) {
	repo := newFakeRepo()
	auth, _ := newTestAuthenticator(repo, &fakeFetcher{}, successResponse("ignored"))
	if err := auth.FinalizeLogin(context.Background(), "u1"); err != nil {
		t.Fatalf("FinalizeLogin failed: %v", err)
	}
	if repo.links != 0 {
		t.Errorf("links = %d, want 0", repo.links)
	}
}

func TestFinalizeLoginSkipsAlreadyLinked(t *testing.T) {
	repo := newFakeRepo()
	auth, pending := newTestAuthenticator(repo, &fakeFetcher{}, successResponse("ignored"))
	ctx := context.Background()

	pending.Put(ctx, sa.PendingLink{SteamID: "76561198000000000", Linked: true})
	if err := auth.FinalizeLogin(ctx, "u1"); err != nil {
		t.Fatalf("FinalizeLogin failed: %v", err)
	}
	if repo.links != 0 {
		t.Errorf("links = %d, want 0 for an already-linked identity", repo.links)
	}
	if link, _ := pending.Get(ctx); link != nil {
		t.Errorf("pending link not cleared: %+v", link)
	}
}

// =============================================================================
// Idempotence
// =============================================================================

func TestAuthenticateIdempotentForLinkedIdentity(t *testing.T) {
	repo := newFakeRepo()
	fetcher := &fakeFetcher{profile: &sa.ProfileSnapshot{PersonaName: "Gordon"}}
	auth, _ := newTestAuthenticator(repo, fetcher,
		successResponse("https://steamcommunity.com/openid/id/76561198000000000"))
	ctx := context.Background()

	first := auth.Authenticate(callbackRequest())
	if !first.Success() {
		t.Fatalf("authenticate failed: %+v", first)
	}
	repo.accounts["u1"] = &sa.LocalAccountSummary{
		ID: "u1", Username: first.Username, Email: first.Email, FullName: first.FullName,
	}
	if err := auth.FinalizeLogin(ctx, "u1"); err != nil {
		t.Fatalf("FinalizeLogin failed: %v", err)
	}

	writesBefore := repo.inserts + repo.links
	second := auth.Authenticate(callbackRequest())
	third := auth.Authenticate(callbackRequest())

	for i, o := range []*sa.Outcome{second, third} {
		if !o.Success() {
			t.Fatalf("repeat authenticate %d failed: %+v", i, o)
		}
		if o.Username != first.Username || o.Email != first.Email || o.FullName != first.FullName {
			t.Errorf("repeat authenticate %d returned different fields: %+v", i, o)
		}
	}
	if repo.inserts+repo.links != writesBefore {
		t.Errorf("repeat authentications performed repository writes")
	}
}
