package postgres

import (
	"encoding/json"

	"github.com/justinzzc/vision-box/internal/domain"
)

func marshalIntList(values []int) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func unmarshalIntList(raw string) []int {
	if raw == "" {
		return nil
	}
	var values []int
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func marshalStringList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func unmarshalStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func toTaskModel(task domain.DetectionTask) taskModel {
	rec := taskModel{
		TaskID:              task.TaskID,
		OwnerID:             task.OwnerID,
		TaskName:            task.TaskName,
		FileReference:       task.FileReference,
		ModelName:           task.ModelName,
		ConfidenceThreshold: task.ConfidenceThreshold,
		IoUThreshold:        task.IoUThreshold,
		MaxDetections:       task.MaxDetections,
		ClassFilter:         marshalIntList(task.ClassFilter),
		Status:              string(task.Status),
		RetryCount:          task.RetryCount,
		MaxRetries:          task.MaxRetries,
		FailureReason:       task.FailureReason,
		CreatedAt:           task.CreatedAt,
		StartedAt:           task.StartedAt,
		CompletedAt:         task.CompletedAt,
		UpdatedAt:           task.UpdatedAt,
	}
	if task.Result != nil {
		if raw, err := json.Marshal(task.Result); err == nil {
			encoded := string(raw)
			rec.Result = &encoded
		}
	}
	return rec
}

func toDomainTask(rec taskModel) domain.DetectionTask {
	task := domain.DetectionTask{
		TaskID:              rec.TaskID,
		OwnerID:             rec.OwnerID,
		TaskName:            rec.TaskName,
		FileReference:       rec.FileReference,
		ModelName:           rec.ModelName,
		ConfidenceThreshold: rec.ConfidenceThreshold,
		IoUThreshold:        rec.IoUThreshold,
		MaxDetections:       rec.MaxDetections,
		ClassFilter:         unmarshalIntList(rec.ClassFilter),
		Status:              domain.TaskStatus(rec.Status),
		RetryCount:          rec.RetryCount,
		MaxRetries:          rec.MaxRetries,
		FailureReason:       rec.FailureReason,
		CreatedAt:           rec.CreatedAt,
		StartedAt:           rec.StartedAt,
		CompletedAt:         rec.CompletedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
	if rec.Result != nil {
		var result domain.DetectionResult
		if err := json.Unmarshal([]byte(*rec.Result), &result); err == nil {
			task.Result = &result
		}
	}
	return task
}

func toServiceModel(svc domain.PublishedService) serviceModel {
	return serviceModel{
		ServiceID:           svc.ServiceID,
		OwnerID:             svc.OwnerID,
		ServiceName:         svc.ServiceName,
		Description:         svc.Description,
		ModelName:           svc.ModelName,
		ConfidenceThreshold: svc.ConfidenceThreshold,
		ClassFilter:         marshalIntList(svc.ClassFilter),
		RateLimitPerMinute:  svc.RateLimitPerMinute,
		MaxPayloadBytes:     svc.MaxPayloadBytes,
		AllowedFormats:      marshalStringList(svc.AllowedFormats),
		Status:              string(svc.Status),
		TotalCalls:          svc.TotalCalls,
		SuccessfulCalls:     svc.SuccessfulCalls,
		FailedCalls:         svc.FailedCalls,
		LastCalledAt:        svc.LastCalledAt,
		CreatedAt:           svc.CreatedAt,
		UpdatedAt:           svc.UpdatedAt,
	}
}

func toDomainService(rec serviceModel) domain.PublishedService {
	return domain.PublishedService{
		ServiceID:           rec.ServiceID,
		OwnerID:             rec.OwnerID,
		ServiceName:         rec.ServiceName,
		Description:         rec.Description,
		ModelName:           rec.ModelName,
		ConfidenceThreshold: rec.ConfidenceThreshold,
		ClassFilter:         unmarshalIntList(rec.ClassFilter),
		RateLimitPerMinute:  rec.RateLimitPerMinute,
		MaxPayloadBytes:     rec.MaxPayloadBytes,
		AllowedFormats:      unmarshalStringList(rec.AllowedFormats),
		Status:              domain.ServiceStatus(rec.Status),
		TotalCalls:          rec.TotalCalls,
		SuccessfulCalls:     rec.SuccessfulCalls,
		FailedCalls:         rec.FailedCalls,
		LastCalledAt:        rec.LastCalledAt,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func toTokenModel(token domain.ServiceToken) tokenModel {
	return tokenModel{
		TokenID:     token.TokenID,
		ServiceID:   token.ServiceID,
		DisplayName: token.DisplayName,
		SecretHash:  token.SecretHash,
		TokenPrefix: token.TokenPrefix,
		IsActive:    token.IsActive,
		IsRevoked:   token.IsRevoked,
		UsageCount:  token.UsageCount,
		LastUsedAt:  token.LastUsedAt,
		LastUsedIP:  nullableString(token.LastUsedIP),
		ExpiresAt:   token.ExpiresAt,
		CreatedAt:   token.CreatedAt,
		UpdatedAt:   token.UpdatedAt,
	}
}

func toDomainToken(rec tokenModel) domain.ServiceToken {
	return domain.ServiceToken{
		TokenID:     rec.TokenID,
		ServiceID:   rec.ServiceID,
		DisplayName: rec.DisplayName,
		SecretHash:  rec.SecretHash,
		TokenPrefix: rec.TokenPrefix,
		IsActive:    rec.IsActive,
		IsRevoked:   rec.IsRevoked,
		UsageCount:  rec.UsageCount,
		LastUsedAt:  rec.LastUsedAt,
		LastUsedIP:  derefString(rec.LastUsedIP),
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toUsageModel(rec domain.UsageRecord) usageModel {
	return usageModel{
		RecordID:          rec.RecordID,
		ServiceID:         rec.ServiceID,
		TokenID:           nullableString(rec.TokenID),
		RequestID:         rec.RequestID,
		OccurredAt:        rec.OccurredAt,
		HTTPMethod:        rec.HTTPMethod,
		StatusCode:        rec.StatusCode,
		ClientAddress:     rec.ClientAddress,
		ProcessingSeconds: rec.ProcessingSeconds,
		DetectionCount:    rec.DetectionCount,
		Success:           rec.Success,
		ErrorCode:         rec.ErrorCode,
	}
}
