package pkce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChallengeS256(t *testing.T) {
	// Appendix B of RFC 7636.
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, challenge, ChallengeS256(verifier))
}

func TestVerify(t *testing.T) {
	verifier := "some-random-verifier-string-0123456789abcdef"

	tests := []struct {
		name      string
		verifier  string
		challenge string
		method    string
		want      bool
	}{
		{
			name:      "S256 match",
			verifier:  verifier,
			challenge: ChallengeS256(verifier),
			method:    "S256",
			want:      true,
		},
		{
			name:      "S256 mismatch",
			verifier:  "a-different-verifier",
			challenge: ChallengeS256(verifier),
			method:    "S256",
			want:      false,
		},
		{
			name:      "plain match",
			verifier:  verifier,
			challenge: verifier,
			method:    "plain",
			want:      true,
		},
		{
			name:      "plain mismatch",
			verifier:  verifier,
			challenge: "something-else",
			method:    "plain",
			want:      false,
		},
		{
			name:      "hashed challenge rejected under plain method",
			verifier:  verifier,
			challenge: ChallengeS256(verifier),
			method:    "plain",
			want:      false,
		},
		{
			name:      "empty verifier against S256 challenge",
			verifier:  "",
			challenge: ChallengeS256(verifier),
			method:    "S256",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.verifier, tt.challenge, tt.method))
		})
	}
}
