package session

import (
	"context"
	"errors"
	"net/url"

	"choregate/internal/oauth/models"
	"choregate/pkg/platform/sentinel"
)

// SavePending parks an authorization request in the session while the user
// completes a login.
func SavePending(ctx context.Context, store Store, sid string, req models.AuthorizationRequest) error {
	pairs := map[string]string{
		KeyOAuthClientID:            req.ClientID,
		KeyOAuthRedirectURI:         req.RedirectURI,
		KeyOAuthScope:               req.Scope,
		KeyOAuthState:               req.State,
		KeyOAuthCodeChallenge:       req.CodeChallenge,
		KeyOAuthCodeChallengeMethod: req.CodeChallengeMethod,
	}
	for key, value := range pairs {
		if err := store.Set(ctx, sid, key, value); err != nil {
			return err
		}
	}
	return nil
}

// LoadPending returns the parked authorization request, or ok=false when the
// session holds none.
func LoadPending(ctx context.Context, store Store, sid string) (models.AuthorizationRequest, bool, error) {
	clientID, err := store.Get(ctx, sid, KeyOAuthClientID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && clientID == "") {
		return models.AuthorizationRequest{}, false, nil
	}
	if err != nil {
		return models.AuthorizationRequest{}, false, err
	}

	req := models.AuthorizationRequest{ClientID: clientID}
	for key, dst := range map[string]*string{
		KeyOAuthRedirectURI:         &req.RedirectURI,
		KeyOAuthScope:               &req.Scope,
		KeyOAuthState:               &req.State,
		KeyOAuthCodeChallenge:       &req.CodeChallenge,
		KeyOAuthCodeChallengeMethod: &req.CodeChallengeMethod,
	} {
		value, err := store.Get(ctx, sid, key)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return models.AuthorizationRequest{}, false, err
		}
		*dst = value
	}
	return req, true, nil
}

// ClearPending consumes the parked request. The session itself (and the
// logged-in subject) survives; only the pending-OAuth keys are blanked.
func ClearPending(ctx context.Context, store Store, sid string) error {
	for _, key := range []string{
		KeyOAuthClientID,
		KeyOAuthRedirectURI,
		KeyOAuthScope,
		KeyOAuthState,
		KeyOAuthCodeChallenge,
		KeyOAuthCodeChallengeMethod,
	} {
		if err := store.Set(ctx, sid, key, ""); err != nil {
			return err
		}
	}
	return nil
}

// ResumeURL rebuilds the /oauth/authorize URL for a parked request so the
// login surface can send the browser back into the flow.
func ResumeURL(req models.AuthorizationRequest) string {
	q := url.Values{}
	q.Set("client_id", req.ClientID)
	q.Set("redirect_uri", req.RedirectURI)
	q.Set("scope", req.Scope)
	q.Set("state", req.State)
	q.Set("code_challenge", req.CodeChallenge)
	q.Set("code_challenge_method", req.CodeChallengeMethod)
	return "/oauth/authorize?" + q.Encode()
}
