package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

// HTTPDetector calls an external inference server. The server owns model
// weights and GPU scheduling and does not share a media store, so the
// adapter resolves the payload and streams it alongside the parameters.
type HTTPDetector struct {
	baseURL string
	files   ports.FileStore
	client  *http.Client
}

func NewHTTPDetector(baseURL string, files ports.FileStore, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPDetector{
		baseURL: baseURL,
		files:   files,
		client:  &http.Client{Timeout: timeout},
	}
}

type inferenceParams struct {
	ModelName           string  `json:"model_name"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IoUThreshold        float64 `json:"iou_threshold"`
	MaxDetections       int     `json:"max_detections"`
	ClassFilter         []int   `json:"class_filter,omitempty"`
}

func (d *HTTPDetector) Run(ctx context.Context, req ports.DetectionRequest) (domain.DetectionResult, error) {
	media, err := d.files.Resolve(ctx, req.FileReference)
	if err != nil {
		return domain.DetectionResult{}, fmt.Errorf("resolve media %s: %w", req.FileReference, err)
	}
	defer media.Close()

	params, err := json.Marshal(inferenceParams{
		ModelName:           req.ModelName,
		ConfidenceThreshold: req.ConfidenceThreshold,
		IoUThreshold:        req.IoUThreshold,
		MaxDetections:       req.MaxDetections,
		ClassFilter:         req.ClassFilter,
	})
	if err != nil {
		return domain.DetectionResult{}, err
	}

	// Stream the form so large media never sits in memory twice.
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeInferenceForm(form, params, req.FileReference, media))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/detect", pr)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return domain.DetectionResult{}, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, payload)
	}

	var result domain.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.DetectionResult{}, fmt.Errorf("decode inference response: %w", err)
	}
	if result.Stats.TotalDetections == 0 && len(result.Detections) > 0 {
		result.Stats = domain.BuildStats(result.Detections)
	}
	if result.ModelUsed == "" {
		result.ModelUsed = req.ModelName
	}
	return result, nil
}

func writeInferenceForm(form *multipart.Writer, params []byte, fileReference string, media io.Reader) error {
	if err := form.WriteField("params", string(params)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", filepath.Base(fileReference))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, media); err != nil {
		return err
	}
	return form.Close()
}
