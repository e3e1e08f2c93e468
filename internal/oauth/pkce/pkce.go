// Package pkce implements Proof Key for Code Exchange verification
// (RFC 7636). It is pure: no state, no side effects.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// ChallengeS256 computes the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify reports whether verifier matches the challenge recorded at
// authorization time. Methods other than S256 fall back to the plain direct
// comparison the PKCE spec permits; that branch is weaker but kept for
// compatibility rather than silently rejected. Both branches compare in
// constant time.
func Verify(verifier, challenge, method string) bool {
	computed := verifier
	if method == "S256" {
		computed = ChallengeS256(verifier)
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
