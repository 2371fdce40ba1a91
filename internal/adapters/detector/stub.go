package detector

import (
	"context"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// StubDetector returns canned detections for environments without a real
// inference backend. It honors the request's confidence threshold and class
// filter so pipelines behave the same as against a live model.
type StubDetector struct{}

func NewStubDetector() *StubDetector {
	return &StubDetector{}
}

var stubDetections = []domain.Detection{
	{ClassID: 0, ClassName: "person", Confidence: 0.85, BBox: [4]float64{100, 100, 200, 300}},
	{ClassID: 2, ClassName: "car", Confidence: 0.92, BBox: [4]float64{300, 150, 500, 350}},
}

func (d *StubDetector) Run(ctx context.Context, req ports.DetectionRequest) (domain.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.DetectionResult{}, err
	}

	allowed := make(map[int]bool, len(req.ClassFilter))
	for _, classID := range req.ClassFilter {
		allowed[classID] = true
	}

	detections := make([]domain.Detection, 0, len(stubDetections))
	for _, det := range stubDetections {
		if det.Confidence < req.ConfidenceThreshold {
			continue
		}
		if len(allowed) > 0 && !allowed[det.ClassID] {
			continue
		}
		if req.MaxDetections > 0 && len(detections) >= req.MaxDetections {
			break
		}
		detections = append(detections, det)
	}

	return domain.DetectionResult{
		Detections:        detections,
		Stats:             domain.BuildStats(detections),
		ModelUsed:         req.ModelName,
		ProcessingSeconds: 0.05,
	}, nil
}
