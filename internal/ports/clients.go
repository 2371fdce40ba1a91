package ports

import (
	"context"
	"io"

	"github.com/justinzzc/vision-box/internal/domain"
)

// DetectionRequest is the single-call contract with the external detector.
// The call is synchronous from the worker's point of view and may take
// seconds to minutes depending on media size.
type DetectionRequest struct {
	FileReference       string
	ModelName           string
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxDetections       int
	ClassFilter         []int
}

type Detector interface {
	Run(ctx context.Context, req DetectionRequest) (domain.DetectionResult, error)
}

// FileStore resolves and stores media payloads. Physical layout is the
// adapter's business.
type FileStore interface {
	Store(ctx context.Context, name string, contentType string, size int64, payload io.Reader) (string, error)
	Resolve(ctx context.Context, fileReference string) (io.ReadCloser, error)
}
