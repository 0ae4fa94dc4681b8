package observability

import (
	"fmt"
	"time"
)

// DeliveryStats holds submission statistics derived from the hook log.
type DeliveryStats struct {
	Total          int            `json:"total" yaml:"total"`
	ByStatus       map[string]int `json:"by_status" yaml:"by_status"`
	ByTool         map[string]int `json:"by_tool" yaml:"by_tool"`
	Sessions       int            `json:"sessions" yaml:"sessions"`
	Retried        int            `json:"retried" yaml:"retried"`
	MeanElapsedMS  float64        `json:"mean_elapsed_ms" yaml:"mean_elapsed_ms"`
	DeliveryRate   float64        `json:"delivery_rate" yaml:"delivery_rate"`
	OldestOutcome  *time.Time     `json:"oldest_outcome,omitempty" yaml:"oldest_outcome,omitempty"`
	NewestOutcome  *time.Time     `json:"newest_outcome,omitempty" yaml:"newest_outcome,omitempty"`
	TranscriptGaps int            `json:"transcript_gaps" yaml:"transcript_gaps"`
}

// StatsCalculator derives delivery statistics from the hook log.
type StatsCalculator interface {
	Calculate(since time.Time) (*DeliveryStats, error)
}

type statsCalculator struct {
	logPath string
}

// NewStatsCalculator creates a StatsCalculator reading the log at logPath.
func NewStatsCalculator(logPath string) StatsCalculator {
	return &statsCalculator{logPath: logPath}
}

// Calculate reads every record since the given time and aggregates them.
func (sc *statsCalculator) Calculate(since time.Time) (*DeliveryStats, error) {
	records, err := ReadRecords(sc.logPath, RecordFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading records for stats: %w", err)
	}
	return Aggregate(records), nil
}

// Aggregate folds log records into DeliveryStats. DeliveryRate is the share
// of submitted messages that were delivered; suppressed and skipped events
// were never submitted and do not count.
func Aggregate(records []Record) *DeliveryStats {
	s := &DeliveryStats{
		ByStatus: make(map[string]int),
		ByTool:   make(map[string]int),
	}

	sessions := map[string]bool{}
	var elapsed int64
	for _, r := range records {
		if r.Message == "transcript unavailable, continuing without context" {
			s.TranscriptGaps++
		}
		if r.Status == "" {
			continue
		}

		s.Total++
		s.ByStatus[r.Status]++
		if r.Tool != "" {
			s.ByTool[r.Tool]++
		}
		if r.SessionID != "" {
			sessions[r.SessionID] = true
		}
		if r.Attempts > 1 {
			s.Retried++
		}
		elapsed += r.ElapsedMS

		t := r.Time
		if s.OldestOutcome == nil || t.Before(*s.OldestOutcome) {
			s.OldestOutcome = &t
		}
		if s.NewestOutcome == nil || t.After(*s.NewestOutcome) {
			s.NewestOutcome = &t
		}
	}

	s.Sessions = len(sessions)
	if s.Total > 0 {
		s.MeanElapsedMS = float64(elapsed) / float64(s.Total)
	}
	submitted := s.ByStatus["delivered"] + s.ByStatus["rejected"] + s.ByStatus["unreachable"]
	if submitted > 0 {
		s.DeliveryRate = float64(s.ByStatus["delivered"]) / float64(submitted)
	}
	return s
}
