package steamauth_test

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	sa "github.com/dzteam/steamauth"
)

func TestIssueDefaults(t *testing.T) {
	var issuer sa.CredentialIssuer
	pw, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(pw) != sa.DefaultPasswordLength {
		t.Errorf("Issue returned %d characters, want %d", len(pw), sa.DefaultPasswordLength)
	}
	for _, r := range pw {
		if !strings.ContainsRune(sa.DefaultPasswordAlphabet, r) {
			t.Errorf("Issue returned symbol %q outside the alphabet", r)
		}
	}
}

func TestIssueCustomLength(t *testing.T) {
	issuer := sa.CredentialIssuer{Length: 40}
	pw, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(pw) != 40 {
		t.Errorf("Issue returned %d characters, want 40", len(pw))
	}
}

func TestIssueSuccessiveCallsDiffer(t *testing.T) {
	var issuer sa.CredentialIssuer
	a, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	b, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if a == b {
		t.Errorf("two successive passwords are identical: %q", a)
	}
}

func TestIssueRejectsTinyAlphabet(t *testing.T) {
	issuer := sa.CredentialIssuer{Alphabet: "a"}
	_, err := issuer.Issue()
	if err == nil {
		t.Fatal("expected error for single-symbol alphabet")
	}
	var authErr *sa.AuthError
	if !errors.As(err, &authErr) || authErr.Code != sa.ErrCodeConfig {
		t.Errorf("error = %v, want code %s", err, sa.ErrCodeConfig)
	}
}

func TestIssuePair(t *testing.T) {
	var issuer sa.CredentialIssuer
	clear, hash, err := issuer.IssuePair()
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(clear)); err != nil {
		t.Errorf("hash does not verify against the clear password: %v", err)
	}
}
