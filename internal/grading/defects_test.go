package grading

import (
	"testing"

	"github.com/example/card-grader/internal/inference"
)

func TestAggregateDefectsPenalties(t *testing.T) {
	dets := []inference.Detection{
		det("tear", 0.9, 0, 0, 50, 50),
		det("tear", 0.6, 100, 100, 150, 150),
		det("cease", 0.7, 200, 200, 250, 250),
	}

	penalty, report := aggregateDefects(dets, "tear", "cease")
	if penalty != 35 {
		t.Fatalf("expected 35 penalty points, got %d", penalty)
	}
	if len(report.Detections) != 3 {
		t.Fatalf("expected 3 diagnostic entries, got %d", len(report.Detections))
	}
}

func TestAggregateDefectsRecordsUnknownClasses(t *testing.T) {
	dets := []inference.Detection{det("scratch", 0.8, 0, 0, 10, 10)}

	penalty, report := aggregateDefects(dets, "tear", "cease")
	if penalty != 0 {
		t.Fatalf("unknown classes must not cost points, got %d", penalty)
	}
	if len(report.Detections) != 1 {
		t.Fatal("unknown classes must still be recorded")
	}
	entry := report.Detections[0]
	if entry.Type != "scratch" || entry.Conf != 0.8 {
		t.Fatalf("unexpected diagnostic entry: %+v", entry)
	}
	if entry.Box != [4]float64{0, 0, 10, 10} {
		t.Fatalf("unexpected box: %+v", entry.Box)
	}
}

func TestAggregateDefectsEmpty(t *testing.T) {
	penalty, report := aggregateDefects(nil, "tear", "cease")
	if penalty != 0 {
		t.Fatalf("expected no penalty, got %d", penalty)
	}
	if len(report.Detections) != 0 {
		t.Fatalf("expected empty diagnostics, got %d", len(report.Detections))
	}
}

func TestAggregateDefectsHonorsConfiguredLabels(t *testing.T) {
	dets := []inference.Detection{
		det("rip", 0.9, 0, 0, 50, 50),
		det("fold", 0.9, 0, 0, 50, 50),
	}

	penalty, _ := aggregateDefects(dets, "rip", "fold")
	if penalty != 20 {
		t.Fatalf("expected 20 penalty points with remapped labels, got %d", penalty)
	}
}
