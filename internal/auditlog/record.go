package auditlog

import (
	"context"
	"strings"
	"time"
)

const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// AuditEntry is one operator mutation: a limit change, a usage reset, a
// DTMF save or reset, or a load-test start or stop.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Command    string    `json:"command"`
	Args       string    `json:"args,omitempty"`
	Source     string    `json:"source,omitempty"`
	Op         string    `json:"op,omitempty"`
	Target     string    `json:"target,omitempty"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// NewEntry builds an entry for a command that started at start and ended
// with err. Metadata attached to ctx fills Source, Op and Target. cancelled
// reports whether err is an operator decline.
func NewEntry(ctx context.Context, command string, args []string, start time.Time, err error, cancelled bool) *AuditEntry {
	meta := MetadataFromContext(ctx)
	entry := &AuditEntry{
		Timestamp:  start.UTC(),
		Command:    command,
		Args:       strings.Join(SanitizeArgs(args), " "),
		Source:     meta.Source,
		Op:         meta.Op,
		Target:     meta.Target,
		DurationMs: time.Since(start).Milliseconds(),
	}
	switch {
	case err != nil && cancelled:
		entry.Outcome = OutcomeCancelled
	case err != nil:
		entry.Outcome = OutcomeError
		entry.Detail = err.Error()
	default:
		entry.Outcome = OutcomeSuccess
	}
	return entry
}
