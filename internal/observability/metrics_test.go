package observability

import (
	"log/slog"
	"testing"
	"time"
)

func TestAggregate(t *testing.T) {
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{Time: base, Message: "message delivered", SessionID: "a", Tool: "Read", Status: "delivered", Attempts: 1, ElapsedMS: 10},
		{Time: base.Add(time.Minute), Message: "message delivered", SessionID: "a", Tool: "Bash", Status: "delivered", Attempts: 2, ElapsedMS: 30},
		{Time: base.Add(2 * time.Minute), Message: "message dropped", SessionID: "b", Tool: "Bash", Status: "unreachable", Attempts: 3, ElapsedMS: 50},
		{Time: base.Add(3 * time.Minute), Message: "event not submitted", SessionID: "b", Tool: "TodoWrite", Status: "suppressed"},
		{Time: base.Add(4 * time.Minute), Message: "transcript unavailable, continuing without context", SessionID: "b"},
	}

	s := Aggregate(records)
	if s.Total != 4 {
		t.Errorf("Total = %d, want 4", s.Total)
	}
	if s.ByStatus["delivered"] != 2 || s.ByStatus["unreachable"] != 1 || s.ByStatus["suppressed"] != 1 {
		t.Errorf("ByStatus = %v", s.ByStatus)
	}
	if s.ByTool["Bash"] != 2 {
		t.Errorf("ByTool = %v", s.ByTool)
	}
	if s.Sessions != 2 || s.Retried != 2 || s.TranscriptGaps != 1 {
		t.Errorf("Sessions/Retried/TranscriptGaps = %d/%d/%d", s.Sessions, s.Retried, s.TranscriptGaps)
	}
	if s.MeanElapsedMS != 22.5 {
		t.Errorf("MeanElapsedMS = %v, want 22.5", s.MeanElapsedMS)
	}
	if s.DeliveryRate < 0.66 || s.DeliveryRate > 0.67 {
		t.Errorf("DeliveryRate = %v, want 2/3", s.DeliveryRate)
	}
	if !s.OldestOutcome.Equal(base) || !s.NewestOutcome.Equal(base.Add(3*time.Minute)) {
		t.Errorf("outcome range = %v..%v", s.OldestOutcome, s.NewestOutcome)
	}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	if s.Total != 0 || s.DeliveryRate != 0 || s.OldestOutcome != nil {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestStatsCalculator_Calculate(t *testing.T) {
	path := writeHookLog(t, func(log *slog.Logger) {
		log.Info("message delivered", "session_id", "s", "tool", "Read", "status", "delivered", "attempts", 1)
		log.Warn("message dropped", "session_id", "s", "tool", "Read", "status", "rejected", "attempts", 1)
	})

	s, err := NewStatsCalculator(path).Calculate(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if s.Total != 2 || s.DeliveryRate != 0.5 {
		t.Errorf("unexpected stats %+v", s)
	}

	s, err = NewStatsCalculator(path).Calculate(time.Now().Add(time.Hour))
	if err != nil || s.Total != 0 {
		t.Errorf("future cutoff should exclude everything, got %+v, %v", s, err)
	}
}
