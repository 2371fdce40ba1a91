package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

func (s *Service) CreateService(ctx context.Context, actor Actor, input CreateServiceInput) (domain.PublishedService, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PublishedService{}, domain.ErrUnauthorized
	}
	candidate := domain.ServiceInput{
		ServiceName:         strings.TrimSpace(input.ServiceName),
		Description:         strings.TrimSpace(input.Description),
		ModelName:           strings.TrimSpace(input.ModelName),
		ConfidenceThreshold: input.ConfidenceThreshold,
		ClassFilter:         input.ClassFilter,
		RateLimitPerMinute:  input.RateLimitPerMinute,
		MaxPayloadBytes:     input.MaxPayloadBytes,
		AllowedFormats:      input.AllowedFormats,
	}
	applyServiceDefaults(&candidate)
	if err := domain.ValidateServiceInput(candidate); err != nil {
		return domain.PublishedService{}, err
	}

	now := s.nowFn()
	svc := domain.PublishedService{
		ServiceID:           uuid.NewString(),
		OwnerID:             actor.SubjectID,
		ServiceName:         candidate.ServiceName,
		Description:         candidate.Description,
		ModelName:           candidate.ModelName,
		ConfidenceThreshold: candidate.ConfidenceThreshold,
		ClassFilter:         candidate.ClassFilter,
		RateLimitPerMinute:  candidate.RateLimitPerMinute,
		MaxPayloadBytes:     candidate.MaxPayloadBytes,
		AllowedFormats:      candidate.AllowedFormats,
		Status:              domain.ServiceStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return domain.PublishedService{}, err
	}
	return svc, nil
}

func (s *Service) GetService(ctx context.Context, actor Actor, serviceID string) (domain.PublishedService, error) {
	return s.requireServiceOwner(ctx, actor, serviceID)
}

// GetServiceInfo is the public, unauthenticated read used by callers probing
// a gateway endpoint before integrating against it.
func (s *Service) GetServiceInfo(ctx context.Context, serviceID string) (domain.PublishedService, error) {
	svc, err := s.resolveService(ctx, serviceID)
	if err != nil {
		return domain.PublishedService{}, err
	}
	if svc.Status != domain.ServiceStatusActive {
		return domain.PublishedService{}, domain.ErrNotFound
	}
	return svc, nil
}

func (s *Service) ListServices(ctx context.Context, actor Actor, status domain.ServiceStatus, page, pageSize int) ([]domain.PublishedService, int64, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, 0, domain.ErrUnauthorized
	}
	filter := ports.ServiceFilter{Status: status, Page: page, PageSize: pageSize}
	if !actor.isAdmin() {
		filter.OwnerID = actor.SubjectID
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.services.List(ctx, filter)
}

func (s *Service) UpdateService(ctx context.Context, actor Actor, serviceID string, input CreateServiceInput) (domain.PublishedService, error) {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return domain.PublishedService{}, err
	}
	candidate := domain.ServiceInput{
		ServiceName:         strings.TrimSpace(input.ServiceName),
		Description:         strings.TrimSpace(input.Description),
		ModelName:           strings.TrimSpace(input.ModelName),
		ConfidenceThreshold: input.ConfidenceThreshold,
		ClassFilter:         input.ClassFilter,
		RateLimitPerMinute:  input.RateLimitPerMinute,
		MaxPayloadBytes:     input.MaxPayloadBytes,
		AllowedFormats:      input.AllowedFormats,
	}
	applyServiceDefaults(&candidate)
	if err := domain.ValidateServiceInput(candidate); err != nil {
		return domain.PublishedService{}, err
	}

	svc.ServiceName = candidate.ServiceName
	svc.Description = candidate.Description
	svc.ModelName = candidate.ModelName
	svc.ConfidenceThreshold = candidate.ConfidenceThreshold
	svc.ClassFilter = candidate.ClassFilter
	svc.RateLimitPerMinute = candidate.RateLimitPerMinute
	svc.MaxPayloadBytes = candidate.MaxPayloadBytes
	svc.AllowedFormats = candidate.AllowedFormats
	svc.UpdatedAt = s.nowFn()
	if err := s.services.Update(ctx, svc); err != nil {
		return domain.PublishedService{}, err
	}
	s.serviceCache.Remove(svc.ServiceID)
	return svc, nil
}

func (s *Service) SetServiceStatus(ctx context.Context, actor Actor, serviceID, rawStatus string) error {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return err
	}
	status, err := domain.NormalizeServiceStatus(rawStatus)
	if err != nil {
		return err
	}
	if err := s.services.SetStatus(ctx, svc.ServiceID, status, s.nowFn()); err != nil {
		return err
	}
	s.serviceCache.Remove(svc.ServiceID)
	return nil
}

// DeleteService removes the service together with its tokens and usage log
// in one transaction, so no token can validate against a missing service.
func (s *Service) DeleteService(ctx context.Context, actor Actor, serviceID string) error {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return err
	}
	if err := s.services.Delete(ctx, svc.ServiceID); err != nil {
		return err
	}
	s.serviceCache.Remove(svc.ServiceID)
	return nil
}

// resolveService serves the gateway hot path through a short-TTL cache.
// Mutations on this process invalidate eagerly; cross-process staleness is
// bounded by the TTL.
func (s *Service) resolveService(ctx context.Context, serviceID string) (domain.PublishedService, error) {
	serviceID = strings.TrimSpace(serviceID)
	if svc, ok := s.serviceCache.Get(serviceID); ok {
		return svc, nil
	}
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return domain.PublishedService{}, err
	}
	s.serviceCache.Add(serviceID, svc)
	return svc, nil
}

func (s *Service) requireServiceOwner(ctx context.Context, actor Actor, serviceID string) (domain.PublishedService, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PublishedService{}, domain.ErrUnauthorized
	}
	svc, err := s.services.GetByID(ctx, strings.TrimSpace(serviceID))
	if err != nil {
		return domain.PublishedService{}, err
	}
	if !actor.isAdmin() && svc.OwnerID != actor.SubjectID {
		return domain.PublishedService{}, domain.ErrForbidden
	}
	return svc, nil
}

// applyServiceDefaults fills omitted knobs; explicit negative values still
// fail validation.
func applyServiceDefaults(input *domain.ServiceInput) {
	if input.ModelName == "" {
		input.ModelName = domain.DefaultModel
	}
	if input.ConfidenceThreshold == 0 {
		input.ConfidenceThreshold = 0.5
	}
	if input.RateLimitPerMinute == 0 {
		input.RateLimitPerMinute = domain.DefaultRateLimitPerMinute
	}
	if input.MaxPayloadBytes == 0 {
		input.MaxPayloadBytes = domain.DefaultMaxPayloadBytes
	}
	if len(input.AllowedFormats) == 0 {
		input.AllowedFormats = append([]string(nil), domain.DefaultAllowedFormats...)
	}
}
