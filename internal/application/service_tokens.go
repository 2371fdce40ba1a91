package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/justinzzc/vision-box/internal/domain"
)

// IssueToken mints a new credential for the service. The raw secret is
// returned exactly once; only its digest survives.
func (s *Service) IssueToken(ctx context.Context, actor Actor, input IssueTokenInput) (IssuedToken, error) {
	svc, err := s.requireServiceOwner(ctx, actor, input.ServiceID)
	if err != nil {
		return IssuedToken{}, err
	}
	if err := domain.ValidateTokenName(input.DisplayName); err != nil {
		return IssuedToken{}, err
	}
	if input.ExpiresIn < 0 {
		return IssuedToken{}, domain.ErrInvalidParameters
	}

	rawSecret, err := s.vault.NewSecret()
	if err != nil {
		return IssuedToken{}, err
	}

	now := s.nowFn()
	token := domain.ServiceToken{
		TokenID:     uuid.NewString(),
		ServiceID:   svc.ServiceID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		SecretHash:  s.vault.Digest(rawSecret),
		TokenPrefix: domain.DisplayPrefix(rawSecret),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.ExpiresIn > 0 {
		exp := now.Add(input.ExpiresIn)
		token.ExpiresAt = &exp
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: token, RawSecret: rawSecret}, nil
}

func (s *Service) ListTokens(ctx context.Context, actor Actor, serviceID string) ([]domain.ServiceToken, error) {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return nil, err
	}
	return s.tokens.ListByService(ctx, svc.ServiceID)
}

func (s *Service) ActivateToken(ctx context.Context, actor Actor, serviceID, tokenID string) error {
	return s.setTokenActive(ctx, actor, serviceID, tokenID, true)
}

func (s *Service) DeactivateToken(ctx context.Context, actor Actor, serviceID, tokenID string) error {
	return s.setTokenActive(ctx, actor, serviceID, tokenID, false)
}

func (s *Service) setTokenActive(ctx context.Context, actor Actor, serviceID, tokenID string, active bool) error {
	token, err := s.requireServiceToken(ctx, actor, serviceID, tokenID)
	if err != nil {
		return err
	}
	// Revocation is terminal; flipping the activation flag cannot undo it.
	if token.IsRevoked {
		return domain.ErrConflict
	}
	return s.tokens.SetActive(ctx, token.TokenID, active, s.nowFn())
}

func (s *Service) RevokeToken(ctx context.Context, actor Actor, serviceID, tokenID string) error {
	token, err := s.requireServiceToken(ctx, actor, serviceID, tokenID)
	if err != nil {
		return err
	}
	if token.IsRevoked {
		return nil
	}
	return s.tokens.Revoke(ctx, token.TokenID, s.nowFn())
}

// ValidateSecret resolves a bearer secret to a usable token and its active
// service. Every rejection cause collapses to domain.ErrUnauthorized so a
// probing caller cannot distinguish unknown, inactive, expired, or revoked
// credentials, nor a disabled service.
func (s *Service) ValidateSecret(ctx context.Context, rawSecret string) (domain.ServiceToken, domain.PublishedService, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" || !strings.HasPrefix(rawSecret, domain.SecretPrefix) {
		return domain.ServiceToken{}, domain.PublishedService{}, domain.ErrUnauthorized
	}
	token, err := s.tokens.GetBySecretHash(ctx, s.vault.Digest(rawSecret))
	if err != nil {
		return domain.ServiceToken{}, domain.PublishedService{}, domain.ErrUnauthorized
	}
	if !token.Usable(s.nowFn()) {
		return domain.ServiceToken{}, domain.PublishedService{}, domain.ErrUnauthorized
	}
	svc, err := s.resolveService(ctx, token.ServiceID)
	if err != nil {
		return domain.ServiceToken{}, domain.PublishedService{}, domain.ErrUnauthorized
	}
	if svc.Status != domain.ServiceStatusActive {
		return domain.ServiceToken{}, domain.PublishedService{}, domain.ErrUnauthorized
	}
	return token, svc, nil
}

func (s *Service) requireServiceToken(ctx context.Context, actor Actor, serviceID, tokenID string) (domain.ServiceToken, error) {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return domain.ServiceToken{}, err
	}
	token, err := s.tokens.GetByID(ctx, strings.TrimSpace(tokenID))
	if err != nil {
		return domain.ServiceToken{}, err
	}
	if token.ServiceID != svc.ServiceID {
		return domain.ServiceToken{}, domain.ErrNotFound
	}
	return token, nil
}
