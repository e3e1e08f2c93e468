// Package service orchestrates the authorization-code flow: code issuance
// for authenticated subjects and the back-channel exchange of a code for a
// signed access token.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"choregate/internal/audit"
	"choregate/internal/oauth/models"
	"choregate/internal/oauth/pkce"
	"choregate/internal/platform/metrics"
	"choregate/internal/platform/middleware"
	"choregate/pkg/platform/sentinel"
)

// CodeStore is the single shared mutable resource of the flow.
type CodeStore interface {
	Create(ctx context.Context, grant models.AuthorizationRequest, subjectID string, now time.Time) (string, error)
	Consume(ctx context.Context, code string, now time.Time, validate func(*models.AuthorizationCode) error) (*models.AuthorizationCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Len() int
}

// Minter signs access tokens. Implemented by the JWT codec.
type Minter interface {
	Mint(subject, scope string) (token string, expiresIn int64, err error)
}

// Service holds the flow's collaborators. It is stateless apart from the
// injected code store.
type Service struct {
	clientID string
	codes    CodeStore
	minter   Minter
	metrics  *metrics.Metrics
	auditor  audit.Publisher
	logger   *slog.Logger
	clock    func() time.Time
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source. Tests use this to drive expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs the flow service for a single pre-shared client identifier.
func New(clientID string, codes CodeStore, minter Minter, m *metrics.Metrics, auditor audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		clientID: clientID,
		codes:    codes,
		minter:   minter,
		metrics:  m,
		auditor:  auditor,
		logger:   logger,
		clock:    time.Now,
		tracer:   otel.Tracer("choregate/oauth"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Now exposes the service clock so the transport layer shares one time source.
func (s *Service) Now() time.Time {
	return s.clock()
}

// IssueCode creates an authorization code for an authenticated subject.
// The request must already be validated; the only check here is the
// pre-shared client binding.
func (s *Service) IssueCode(ctx context.Context, req models.AuthorizationRequest, subjectID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.issue_code", trace.WithAttributes(
		attribute.String("oauth.client_id", req.ClientID),
		attribute.String("oauth.scope", req.Scope),
		attribute.String("oauth.pkce.method", req.CodeChallengeMethod),
	))
	defer span.End()

	if req.ClientID != s.clientID {
		return "", models.NewFlowError(models.ErrInvalidRequest, "unknown client_id")
	}

	code, err := s.codes.Create(ctx, req, subjectID, s.clock())
	if err != nil {
		return "", models.WrapFlowError(err, models.ErrServerError, "failed to store authorization code")
	}

	s.metrics.CodesIssued.Inc()
	s.metrics.PendingCodes.Set(float64(s.codes.Len()))
	s.auditor.Publish(audit.Event{
		Timestamp: s.clock(),
		Action:    audit.ActionCodeIssued,
		Subject:   subjectID,
		ClientID:  req.ClientID,
		RequestID: middleware.GetRequestID(ctx),
	})
	return code, nil
}

// Exchange redeems an authorization code for an access token. The code is
// consumed exactly once: binding or PKCE failures leave it in place for a
// corrected retry within its TTL, while success and expiry remove it.
func (s *Service) Exchange(ctx context.Context, req models.TokenRequest) (*models.TokenResult, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.exchange", trace.WithAttributes(
		attribute.String("oauth.client_id", req.ClientID),
		attribute.String("oauth.grant_type", req.GrantType),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		s.recordExchangeFailure(ctx, req.ClientID, err)
		return nil, err
	}

	record, err := s.codes.Consume(ctx, req.Code, s.clock(), func(code *models.AuthorizationCode) error {
		if code.ClientID != req.ClientID {
			return models.NewFlowError(models.ErrInvalidClient, "client_id mismatch")
		}
		if code.RedirectURI != req.RedirectURI {
			return models.NewFlowError(models.ErrInvalidGrant, "redirect_uri mismatch")
		}
		if !pkce.Verify(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
			return models.NewFlowError(models.ErrInvalidVerifier, "code verifier does not match challenge")
		}
		return nil
	})
	if err != nil {
		err = translateConsumeError(err)
		s.recordExchangeFailure(ctx, req.ClientID, err)
		return nil, err
	}

	accessToken, expiresIn, err := s.minter.Mint(record.SubjectID, record.Scope)
	if err != nil {
		flowErr := models.WrapFlowError(err, models.ErrServerError, "failed to mint access token")
		s.recordExchangeFailure(ctx, req.ClientID, flowErr)
		return nil, flowErr
	}

	s.metrics.RecordExchange("success")
	s.metrics.TokensMinted.Inc()
	s.metrics.PendingCodes.Set(float64(s.codes.Len()))
	s.auditor.Publish(audit.Event{
		Timestamp: s.clock(),
		Action:    audit.ActionCodeExchanged,
		Subject:   record.SubjectID,
		ClientID:  req.ClientID,
		RequestID: middleware.GetRequestID(ctx),
	})

	return &models.TokenResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	}, nil
}

// DeleteExpired sweeps stale codes. Run periodically from main.
func (s *Service) DeleteExpired(ctx context.Context) (int, error) {
	deleted, err := s.codes.DeleteExpired(ctx, s.clock())
	if err != nil {
		return 0, err
	}
	s.metrics.PendingCodes.Set(float64(s.codes.Len()))
	return deleted, nil
}

// translateConsumeError converts store sentinels into protocol errors.
// Unknown and expired codes both surface as invalid_grant; the distinction
// stays in the description for server-side logs.
func translateConsumeError(err error) error {
	var flowErr *models.FlowError
	if errors.As(err, &flowErr) {
		return flowErr
	}
	switch {
	case errors.Is(err, sentinel.ErrExpired):
		return models.WrapFlowError(err, models.ErrInvalidGrant, "authorization code expired")
	case errors.Is(err, sentinel.ErrNotFound):
		return models.WrapFlowError(err, models.ErrInvalidGrant, "unknown authorization code")
	default:
		return models.WrapFlowError(err, models.ErrServerError, "authorization code lookup failed")
	}
}

func (s *Service) recordExchangeFailure(ctx context.Context, clientID string, err error) {
	reason := string(models.ErrServerError)
	var flowErr *models.FlowError
	if errors.As(err, &flowErr) {
		reason = string(flowErr.Code)
	}
	s.metrics.RecordExchange(reason)
	s.auditor.Publish(audit.Event{
		Timestamp: s.clock(),
		Action:    audit.ActionExchangeFailed,
		ClientID:  clientID,
		Reason:    reason,
		RequestID: middleware.GetRequestID(ctx),
	})
}
