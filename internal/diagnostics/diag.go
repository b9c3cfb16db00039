package diagnostics

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Diagnostic is a structured event pushed to diagnostics clients.
type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"` // e.g. "PATTERN.DONE"
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

func (s Severity) level() zerolog.Level {
	switch s {
	case Err:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Log writes d to the global logger at its severity.
func (d Diagnostic) Log() {
	ev := log.WithLevel(d.Severity.level()).Str("code", d.Code)
	if d.Detail != "" {
		ev = ev.Str("detail", d.Detail)
	}
	if len(d.Evidence) > 0 {
		ev = ev.Interface("evidence", d.Evidence)
	}
	ev.Msg(d.Summary)
}
