package steamauth_test

import (
	"errors"
	"testing"

	sa "github.com/dzteam/steamauth"
)

func TestResolveSteamID(t *testing.T) {
	cases := []struct {
		url  string
		want sa.SteamID
	}{
		{"https://steamcommunity.com/openid/id/76561198000000000", "76561198000000000"},
		{"http://steamcommunity.com/openid/id/76561197960287930/", "76561197960287930"},
		{"https://provider/openid?id=76561198000000000", "76561198000000000"},
		// Only the trailing digit run counts, not earlier ones.
		{"https://host123/openid/id/42abc", "42"},
		{"76561198000000000", "76561198000000000"},
	}
	for _, c := range cases {
		got, err := sa.ResolveSteamID(c.url)
		if err != nil {
			t.Errorf("ResolveSteamID(%q) failed: %v", c.url, err)
			continue
		}
		if got != c.want {
			t.Errorf("ResolveSteamID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestResolveSteamIDNoDigits(t *testing.T) {
	for _, url := range []string{"", "https://steamcommunity.com/openid/id/", "not-a-url"} {
		_, err := sa.ResolveSteamID(url)
		if err == nil {
			t.Errorf("ResolveSteamID(%q) should fail", url)
			continue
		}
		var authErr *sa.AuthError
		if !errors.As(err, &authErr) || authErr.Code != sa.ErrCodeIdentityParse {
			t.Errorf("ResolveSteamID(%q) error = %v, want code %s", url, err, sa.ErrCodeIdentityParse)
		}
	}
}

func TestSteamIDSuffix(t *testing.T) {
	if got := sa.SteamID("76561198000000123").Suffix(3); got != "123" {
		t.Errorf("Suffix(3) = %q, want %q", got, "123")
	}
	if got := sa.SteamID("42").Suffix(3); got != "42" {
		t.Errorf("Suffix(3) on short id = %q, want %q", got, "42")
	}
}
