package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
)

// recordUsage hands an outcome to the drain goroutine without blocking the
// gateway response path. When the buffer is full the record is dropped and
// counted in the log; the usage trail is best effort by contract.
func (s *Service) recordUsage(ctx context.Context, outcome usageOutcome) {
	select {
	case s.usageCh <- outcome:
	default:
		slog.Default().WarnContext(ctx, "usage buffer full, dropping record",
			"operation", "record_usage",
			"service_id", outcome.record.ServiceID,
			"request_id", outcome.record.RequestID)
	}
}

// RunUsageDrain consumes buffered outcomes until ctx is cancelled, then
// flushes what remains in the buffer before returning.
func (s *Service) RunUsageDrain(ctx context.Context) {
	for {
		select {
		case outcome := <-s.usageCh:
			s.persistUsage(outcome)
		case <-ctx.Done():
			s.FlushUsage()
			return
		}
	}
}

// FlushUsage synchronously drains everything currently buffered. Tests and
// shutdown use it; the hot path never does.
func (s *Service) FlushUsage() {
	for {
		select {
		case outcome := <-s.usageCh:
			s.persistUsage(outcome)
		default:
			return
		}
	}
}

// persistUsage writes one outcome with a detached context so shutdown of the
// request that produced it cannot cancel the write.
func (s *Service) persistUsage(outcome usageOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := outcome.record
	if err := s.usage.Append(ctx, rec); err != nil {
		slog.Default().ErrorContext(ctx, "usage append failed",
			"operation", "persist_usage", "service_id", rec.ServiceID, "error", err)
	}
	if err := s.services.RecordCall(ctx, rec.ServiceID, rec.Success, rec.OccurredAt); err != nil {
		slog.Default().ErrorContext(ctx, "service counter update failed",
			"operation", "persist_usage", "service_id", rec.ServiceID, "error", err)
	}
	if outcome.bumpToken && rec.TokenID != "" {
		if err := s.tokens.RecordUse(ctx, rec.TokenID, rec.ClientAddress, rec.OccurredAt); err != nil {
			slog.Default().ErrorContext(ctx, "token counter update failed",
				"operation", "persist_usage", "token_id", rec.TokenID, "error", err)
		}
	}
}

// GetUsageSummary aggregates the usage log for one owned service over a
// closed time window.
func (s *Service) GetUsageSummary(ctx context.Context, actor Actor, serviceID string, from, to time.Time) (domain.UsageSummary, error) {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return domain.UsageSummary{}, err
	}
	if to.IsZero() {
		to = s.nowFn()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return domain.UsageSummary{}, domain.ErrInvalidParameters
	}
	summary, err := s.usage.Summarize(ctx, svc.ServiceID, from, to)
	if err != nil {
		return domain.UsageSummary{}, err
	}
	summary.ServiceID = svc.ServiceID
	summary.WindowStart = from
	summary.WindowEnd = to
	if summary.TotalCalls > 0 {
		summary.SuccessRate = float64(summary.SuccessfulCalls) / float64(summary.TotalCalls)
	}
	return summary, nil
}

// GetDailyStats returns one entry per calendar day over the last `days`
// days, most recent last. Days without traffic carry zero counts so a
// charting client never sees gaps.
func (s *Service) GetDailyStats(ctx context.Context, actor Actor, serviceID string, days int) ([]domain.DailyStat, error) {
	svc, err := s.requireServiceOwner(ctx, actor, serviceID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	now := s.nowFn()
	end := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	start := end.AddDate(0, 0, -days)

	totals, err := s.usage.DailyTotals(ctx, svc.ServiceID, start, end)
	if err != nil {
		return nil, err
	}

	stats := make([]domain.DailyStat, 0, days)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if stat, ok := totals[key]; ok {
			stat.Date = key
			stats = append(stats, stat)
			continue
		}
		stats = append(stats, domain.DailyStat{Date: key})
	}
	return stats, nil
}
