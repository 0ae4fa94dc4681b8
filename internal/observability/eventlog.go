package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Record is one hook log line as written by the slog JSON handler.
type Record struct {
	Time       time.Time `json:"time"`
	Level      string    `json:"level"`
	Message    string    `json:"msg"`
	SessionID  string    `json:"session_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RecordFilter specifies criteria for reading log records.
type RecordFilter struct {
	Since     *time.Time
	Until     *time.Time
	Level     string
	SessionID string
	// OutcomesOnly keeps only records that carry a submission status.
	OutcomesOnly bool
}

// ReadRecords scans the hook log at path and returns the records matching
// filter in file order. A missing file yields no records. Lines that are not
// JSON are skipped.
func ReadRecords(path string, filter RecordFilter) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening hook log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			continue // skip malformed lines
		}

		if matchesRecordFilter(r, filter) {
			records = append(records, r)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning hook log: %w", err)
	}

	return records, nil
}

// matchesRecordFilter checks whether a record satisfies all filter criteria.
func matchesRecordFilter(r Record, filter RecordFilter) bool {
	if filter.Since != nil && r.Time.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && r.Time.After(*filter.Until) {
		return false
	}
	if filter.Level != "" && r.Level != filter.Level {
		return false
	}
	if filter.SessionID != "" && r.SessionID != filter.SessionID {
		return false
	}
	if filter.OutcomesOnly && r.Status == "" {
		return false
	}
	return true
}
