package postgres

import (
	"context"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
	"gorm.io/gorm"
)

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) ports.UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Append(ctx context.Context, record domain.UsageRecord) error {
	rec := toUsageModel(record)
	return r.db.WithContext(ctx).Create(&rec).Error
}

type summaryRow struct {
	TotalCalls      int64
	SuccessfulCalls int64
	AvgLatency      float64
	UniqueCallers   int64
	TotalDetections int64
}

func (r *usageRepository) Summarize(ctx context.Context, serviceID string, from, to time.Time) (domain.UsageSummary, error) {
	var row summaryRow
	err := r.db.WithContext(ctx).
		Model(&usageModel{}).
		Select(`COUNT(*) AS total_calls,
			COUNT(*) FILTER (WHERE success) AS successful_calls,
			COALESCE(AVG(processing_seconds), 0) AS avg_latency,
			COUNT(DISTINCT client_address) AS unique_callers,
			COALESCE(SUM(detection_count), 0) AS total_detections`).
		Where("service_id = ?", serviceID).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Scan(&row).Error
	if err != nil {
		return domain.UsageSummary{}, err
	}
	return domain.UsageSummary{
		ServiceID:       serviceID,
		TotalCalls:      row.TotalCalls,
		SuccessfulCalls: row.SuccessfulCalls,
		FailedCalls:     row.TotalCalls - row.SuccessfulCalls,
		AvgLatency:      row.AvgLatency,
		UniqueCallers:   row.UniqueCallers,
		TotalDetections: row.TotalDetections,
	}, nil
}

type dailyRow struct {
	Day             time.Time
	TotalCalls      int64
	SuccessfulCalls int64
	AvgLatency      float64
	TotalDetections int64
}

func (r *usageRepository) DailyTotals(ctx context.Context, serviceID string, from, to time.Time) (map[string]domain.DailyStat, error) {
	var rows []dailyRow
	err := r.db.WithContext(ctx).
		Model(&usageModel{}).
		Select(`date_trunc('day', occurred_at) AS day,
			COUNT(*) AS total_calls,
			COUNT(*) FILTER (WHERE success) AS successful_calls,
			COALESCE(AVG(processing_seconds), 0) AS avg_latency,
			COALESCE(SUM(detection_count), 0) AS total_detections`).
		Where("service_id = ?", serviceID).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]domain.DailyStat, len(rows))
	for _, row := range rows {
		key := row.Day.UTC().Format("2006-01-02")
		totals[key] = domain.DailyStat{
			Date:            key,
			TotalCalls:      row.TotalCalls,
			SuccessfulCalls: row.SuccessfulCalls,
			FailedCalls:     row.TotalCalls - row.SuccessfulCalls,
			AvgLatency:      row.AvgLatency,
			TotalDetections: row.TotalDetections,
		}
	}
	return totals, nil
}
