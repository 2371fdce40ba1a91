package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
	"gorm.io/gorm"
)

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) ports.TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token domain.ServiceToken) error {
	rec := toTokenModel(token)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *tokenRepository) GetByID(ctx context.Context, tokenID string) (domain.ServiceToken, error) {
	var rec tokenModel
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ServiceToken{}, domain.ErrNotFound
		}
		return domain.ServiceToken{}, err
	}
	return toDomainToken(rec), nil
}

func (r *tokenRepository) GetBySecretHash(ctx context.Context, secretHash string) (domain.ServiceToken, error) {
	var rec tokenModel
	if err := r.db.WithContext(ctx).Where("secret_hash = ?", secretHash).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ServiceToken{}, domain.ErrNotFound
		}
		return domain.ServiceToken{}, err
	}
	return toDomainToken(rec), nil
}

func (r *tokenRepository) ListByService(ctx context.Context, serviceID string) ([]domain.ServiceToken, error) {
	var rows []tokenModel
	err := r.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tokens := make([]domain.ServiceToken, 0, len(rows))
	for _, item := range rows {
		tokens = append(tokens, toDomainToken(item))
	}
	return tokens, nil
}

func (r *tokenRepository) SetActive(ctx context.Context, tokenID string, active bool, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("token_id = ?", tokenID).
		Where("is_revoked = ?", false).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&tokenModel{}).Where("token_id = ?", tokenID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *tokenRepository) Revoke(ctx context.Context, tokenID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("token_id = ?", tokenID).
		Where("is_revoked = ?", false).
		Updates(map[string]any{
			"is_revoked": true,
			"is_active":  false,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&tokenModel{}).Where("token_id = ?", tokenID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *tokenRepository) RecordUse(ctx context.Context, tokenID, clientIP string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&tokenModel{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]any{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": at,
			"last_used_ip": nullableString(clientIP),
			"updated_at":   at,
		}).Error
}
