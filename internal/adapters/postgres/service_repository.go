package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
	"gorm.io/gorm"
)

type serviceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) ports.ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) Create(ctx context.Context, svc domain.PublishedService) error {
	rec := toServiceModel(svc)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *serviceRepository) GetByID(ctx context.Context, serviceID string) (domain.PublishedService, error) {
	var rec serviceModel
	if err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PublishedService{}, domain.ErrNotFound
		}
		return domain.PublishedService{}, err
	}
	return toDomainService(rec), nil
}

func (r *serviceRepository) List(ctx context.Context, filter ports.ServiceFilter) ([]domain.PublishedService, int64, error) {
	query := r.db.WithContext(ctx).Model(&serviceModel{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []serviceModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	services := make([]domain.PublishedService, 0, len(rows))
	for _, item := range rows {
		services = append(services, toDomainService(item))
	}
	return services, total, nil
}

func (r *serviceRepository) Update(ctx context.Context, svc domain.PublishedService) error {
	res := r.db.WithContext(ctx).
		Model(&serviceModel{}).
		Where("service_id = ?", svc.ServiceID).
		Updates(map[string]any{
			"service_name":          svc.ServiceName,
			"description":           svc.Description,
			"model_name":            svc.ModelName,
			"confidence_threshold":  svc.ConfidenceThreshold,
			"class_filter":          marshalIntList(svc.ClassFilter),
			"rate_limit_per_minute": svc.RateLimitPerMinute,
			"max_payload_bytes":     svc.MaxPayloadBytes,
			"allowed_formats":       marshalStringList(svc.AllowedFormats),
			"updated_at":            svc.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *serviceRepository) SetStatus(ctx context.Context, serviceID string, status domain.ServiceStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&serviceModel{}).
		Where("service_id = ?", serviceID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the service row plus its tokens and usage in one
// transaction, so a validating gateway can never observe a token whose
// service is gone.
func (r *serviceRepository) Delete(ctx context.Context, serviceID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("service_id = ?", serviceID).Delete(&usageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("service_id = ?", serviceID).Delete(&tokenModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("service_id = ?", serviceID).Delete(&serviceModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *serviceRepository) RecordCall(ctx context.Context, serviceID string, success bool, at time.Time) error {
	updates := map[string]any{
		"total_calls":    gorm.Expr("total_calls + 1"),
		"last_called_at": at,
		"updated_at":     at,
	}
	if success {
		updates["successful_calls"] = gorm.Expr("successful_calls + 1")
	} else {
		updates["failed_calls"] = gorm.Expr("failed_calls + 1")
	}
	res := r.db.WithContext(ctx).
		Model(&serviceModel{}).
		Where("service_id = ?", serviceID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
