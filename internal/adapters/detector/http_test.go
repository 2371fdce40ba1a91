package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/justinzzc/vision-box/internal/adapters/storage"
	"github.com/justinzzc/vision-box/internal/domain"
	"github.com/justinzzc/vision-box/internal/ports"
)

func TestHTTPDetectorStreamsResolvedMedia(t *testing.T) {
	files := storage.NewMemoryStore()
	payload := []byte("not really a jpeg")
	fileRef, err := files.Store(context.Background(), "frame.jpg", "image/jpeg", int64(len(payload)), bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("store media: %v", err)
	}

	var gotParams inferenceParams
	var gotMedia []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("params")), &gotParams); err != nil {
			t.Errorf("decode params: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotMedia, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.DetectionResult{
			Detections: []domain.Detection{{ClassID: 0, ClassName: "person", Confidence: 0.91}},
		})
	}))
	defer server.Close()

	det := NewHTTPDetector(server.URL, files, time.Minute)
	result, err := det.Run(context.Background(), ports.DetectionRequest{
		FileReference:       fileRef,
		ModelName:           domain.DefaultModel,
		ConfidenceThreshold: 0.5,
		IoUThreshold:        domain.DefaultIoUThreshold,
		MaxDetections:       domain.DefaultMaxDetections,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !bytes.Equal(gotMedia, payload) {
		t.Fatalf("server received %q, want %q", gotMedia, payload)
	}
	if gotParams.ModelName != domain.DefaultModel || gotParams.ConfidenceThreshold != 0.5 {
		t.Fatalf("unexpected params: %+v", gotParams)
	}
	if result.Stats.TotalDetections != 1 {
		t.Fatalf("expected derived stats, got %+v", result.Stats)
	}
	if result.ModelUsed != domain.DefaultModel {
		t.Fatalf("expected model fallback, got %q", result.ModelUsed)
	}
}

func TestHTTPDetectorUnknownReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be called for unresolvable media")
	}))
	defer server.Close()

	det := NewHTTPDetector(server.URL, storage.NewMemoryStore(), time.Minute)
	_, err := det.Run(context.Background(), ports.DetectionRequest{FileReference: "missing.jpg"})
	if err == nil {
		t.Fatal("expected an error for unknown media reference")
	}
}
