package steamauth

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordAlphabet is the 62-symbol alphanumeric alphabet provisional
// passwords are drawn from.
const DefaultPasswordAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultPasswordLength is long enough that the value never has to be
// treated as guessable, even though the host should rotate it anyway.
const DefaultPasswordLength = 24

// CredentialIssuer generates random clear-text credentials for provisional
// accounts. The zero value issues 24-character alphanumeric passwords.
type CredentialIssuer struct {
	// Alphabet to draw symbols from. Defaults to DefaultPasswordAlphabet.
	// Alphabets with fewer than 2 symbols are a configuration error.
	Alphabet string

	// Length of issued passwords. Defaults to DefaultPasswordLength.
	Length int
}

// Issue returns a fresh uniformly random password. Each symbol is drawn
// independently with crypto/rand over the whole alphabet, so symbols can
// repeat and the keyspace is len(alphabet)^length.
func (c CredentialIssuer) Issue() (string, error) {
	alphabet := c.Alphabet
	if alphabet == "" {
		alphabet = DefaultPasswordAlphabet
	}
	if len(alphabet) < 2 {
		return "", NewAuthError(ErrCodeConfig, "password alphabet needs at least 2 symbols")
	}
	length := c.Length
	if length <= 0 {
		length = DefaultPasswordLength
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", WrapAuthError(ErrCodeConfig, "random source failed", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// IssuePair returns the clear password together with its bcrypt hash, the
// pair a Success outcome carries for a provisional account.
func (c CredentialIssuer) IssuePair() (clear, hash string, err error) {
	clear, err = c.Issue()
	if err != nil {
		return "", "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(clear), bcrypt.DefaultCost)
	if err != nil {
		return "", "", WrapAuthError(ErrCodeConfig, "failed to hash password", err)
	}
	return clear, string(h), nil
}
