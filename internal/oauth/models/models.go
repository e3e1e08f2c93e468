package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// Lifetimes are absolute wall-clock deadlines compared against an injected
// "now" so flows stay testable without real-time waits.
const (
	// AuthorizationCodeTTL is deliberately short: codes are high-risk if
	// replayed.
	AuthorizationCodeTTL = 10 * time.Minute

	AccessTokenTTL = 24 * time.Hour
)

// CodeChallengeMethodS256 is the only method advertised in discovery.
// Anything else falls back to the plain comparison branch at exchange time.
const CodeChallengeMethodS256 = "S256"

// GrantTypeAuthorizationCode is the only grant this server supports.
const GrantTypeAuthorizationCode = "authorization_code"

// AuthorizationRequest carries the query parameters of GET /oauth/authorize.
// While the browser user completes a login it is parked in session storage
// and consumed when the endpoint is re-entered.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Validate rejects malformed requests before any session or store
// interaction.
func (r AuthorizationRequest) Validate() error {
	if !govalidator.StringLength(r.ClientID, "1", "100") {
		return NewFlowError(ErrInvalidRequest, "client_id is required")
	}
	if !govalidator.StringLength(r.RedirectURI, "1", "2048") || !govalidator.IsURL(r.RedirectURI) {
		return NewFlowError(ErrInvalidRequest, "invalid redirect_uri")
	}
	if strings.TrimSpace(r.Scope) == "" {
		return NewFlowError(ErrInvalidRequest, "scope is required")
	}
	if r.State == "" {
		return NewFlowError(ErrInvalidRequest, "state is required")
	}
	if len(r.State) > 500 {
		return NewFlowError(ErrInvalidRequest, "state too long")
	}
	if r.CodeChallenge == "" {
		return NewFlowError(ErrInvalidRequest, "code_challenge is required")
	}
	if r.CodeChallengeMethod == "" {
		return NewFlowError(ErrInvalidRequest, "code_challenge_method is required")
	}
	return nil
}

// AuthorizationCode is a short-lived, single-use grant awaiting exchange.
// The store exclusively owns records for their lifetime.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	SubjectID           string
	IssuedAt            time.Time
	ExpiresAt           time.Time
}

// Expired reports whether the code's absolute deadline has passed.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// TokenRequest carries the form parameters of POST /oauth/token.
type TokenRequest struct {
	GrantType    string
	Code         string
	ClientID     string
	CodeVerifier string
	RedirectURI  string
}

// Validate enforces presence of the back-channel exchange parameters.
func (r TokenRequest) Validate() error {
	if r.GrantType != GrantTypeAuthorizationCode {
		return NewFlowError(ErrUnsupportedGrantType, "only authorization_code is supported")
	}
	if r.Code == "" {
		return NewFlowError(ErrInvalidRequest, "code is required")
	}
	if r.ClientID == "" {
		return NewFlowError(ErrInvalidRequest, "client_id is required")
	}
	if r.CodeVerifier == "" {
		return NewFlowError(ErrInvalidRequest, "code_verifier is required")
	}
	if r.RedirectURI == "" {
		return NewFlowError(ErrInvalidRequest, "redirect_uri is required")
	}
	return nil
}

// TokenResult is the successful token endpoint response body.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	ScopesSupported               []string `json:"scopes_supported"`
}

// ProtectedResourceMetadata advertises which authorization server guards the
// tool-calling API.
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
}
