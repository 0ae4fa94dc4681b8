package core

import (
	"strings"

	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

// ContextSelector picks the conversational turns that explain an event.
type ContextSelector interface {
	Select(ev models.Event, entries []models.TranscriptEntry) models.ContextWindow
	// Anchor returns the boundary position of ev: entries[:Anchor] precede it.
	Anchor(ev models.Event, entries []models.TranscriptEntry) int
}

type contextSelector struct {
	maxTurns int
	maxScan  int
}

// NewContextSelector creates a ContextSelector bounded by cfg.
func NewContextSelector(cfg models.ContextConfig) ContextSelector {
	pairs := cfg.WindowPairs
	if pairs < 1 {
		pairs = 1
	}
	scan := cfg.MaxScanEntries
	if scan < 1 {
		scan = 200
	}
	return &contextSelector{maxTurns: 2 * pairs, maxScan: scan}
}

// Anchor locates the event in the transcript. A tool_call entry carrying the
// event's tool_use_id wins. Otherwise, when the event has a timestamp, the
// boundary is the first timestamped entry strictly after it. Otherwise the
// event is placed at the end of the transcript.
func (s *contextSelector) Anchor(ev models.Event, entries []models.TranscriptEntry) int {
	if ev.ToolUseID != "" {
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Role == models.RoleToolCall && entries[i].ToolUseID == ev.ToolUseID {
				return i
			}
		}
	}
	if !ev.Timestamp.IsZero() {
		for i, e := range entries {
			if !e.Timestamp.IsZero() && e.Timestamp.After(ev.Timestamp) {
				return i
			}
		}
	}
	return len(entries)
}

// Select scans backward from the anchor for the nearest user turn and the
// nearest assistant text turn. Without a user turn the window is empty.
func (s *contextSelector) Select(ev models.Event, entries []models.TranscriptEntry) models.ContextWindow {
	anchor := s.Anchor(ev, entries)

	var user, assistant *models.TranscriptEntry
	turns, scanned := 0, 0
	for i := anchor - 1; i >= 0 && scanned < s.maxScan && turns < s.maxTurns; i-- {
		scanned++
		e := entries[i]
		if !e.IsTurn() || strings.TrimSpace(e.Text) == "" {
			continue
		}
		turns++
		switch e.Role {
		case models.RoleUser:
			if user == nil {
				user = &e
			}
		case models.RoleAssistant:
			if assistant == nil {
				assistant = &e
			}
		}
		if user != nil && assistant != nil {
			break
		}
	}

	if user == nil {
		return models.ContextWindow{TurnsConsidered: turns}
	}
	return models.ContextWindow{
		PrecedingUserTurn:      user,
		PrecedingAssistantTurn: assistant,
		TurnsConsidered:        turns,
	}
}
