package domain

import (
	"errors"
	"testing"
)

func TestCanTransitionTask(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusProcessing, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusPending, TaskStatusCompleted, false},
		{TaskStatusProcessing, TaskStatusCompleted, true},
		{TaskStatusProcessing, TaskStatusFailed, true},
		{TaskStatusProcessing, TaskStatusPending, true},
		{TaskStatusCompleted, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransitionTask(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionTask(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateTaskInputRejectsBadParameters(t *testing.T) {
	base := TaskInput{
		FileReference:       "2026/01/01/file.jpg",
		ModelName:           DefaultModel,
		ConfidenceThreshold: 0.5,
		IoUThreshold:        0.5,
		MaxDetections:       100,
	}

	valid := base
	if err := ValidateTaskInput(valid); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	cases := map[string]func(*TaskInput){
		"missing file":        func(in *TaskInput) { in.FileReference = "" },
		"unknown model":       func(in *TaskInput) { in.ModelName = "yolov99" },
		"zero confidence":     func(in *TaskInput) { in.ConfidenceThreshold = 0 },
		"confidence above 1":  func(in *TaskInput) { in.ConfidenceThreshold = 1.5 },
		"negative iou":        func(in *TaskInput) { in.IoUThreshold = -0.1 },
		"unknown class id":    func(in *TaskInput) { in.ClassFilter = []int{500} },
		"negative detections": func(in *TaskInput) { in.MaxDetections = -1 },
	}
	for name, mutate := range cases {
		in := base
		mutate(&in)
		if err := ValidateTaskInput(in); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("%s: expected ErrInvalidParameters, got %v", name, err)
		}
	}
}

func TestBuildStats(t *testing.T) {
	stats := BuildStats([]Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.8},
		{ClassID: 0, ClassName: "person", Confidence: 0.6},
		{ClassID: 2, ClassName: "car", Confidence: 0.9},
	})
	if stats.TotalDetections != 3 {
		t.Fatalf("expected 3 detections, got %d", stats.TotalDetections)
	}
	if stats.ClassCounts["person"] != 2 || stats.ClassCounts["car"] != 1 {
		t.Fatalf("unexpected class counts: %v", stats.ClassCounts)
	}
	if stats.MaxConfidence != 0.9 {
		t.Fatalf("expected max confidence 0.9, got %f", stats.MaxConfidence)
	}
	want := (0.8 + 0.6 + 0.9) / 3
	if diff := stats.MeanConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected mean confidence %f, got %f", want, stats.MeanConfidence)
	}
}

func TestBuildStatsEmpty(t *testing.T) {
	stats := BuildStats(nil)
	if stats.TotalDetections != 0 || stats.MeanConfidence != 0 || stats.MaxConfidence != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}
