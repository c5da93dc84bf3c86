package scrutiny

import (
	"context"
	"log/slog"
)

// DiagnosticCode identifies the kind of diagnostic the engine reports.
type DiagnosticCode string

const (
	DiagUnknownPosts       DiagnosticCode = "unknown_posts"
	DiagReplyWithoutRoot   DiagnosticCode = "reply_without_root"
	DiagMentionFromHint    DiagnosticCode = "mention_from_hint"
	DiagMentionDefaulted   DiagnosticCode = "mention_defaulted"
	DiagUndecodableHint    DiagnosticCode = "undecodable_hint"
	DiagDuplicatePosts     DiagnosticCode = "duplicate_posts"
	DiagTraversalTruncated DiagnosticCode = "traversal_truncated"
)

// Diagnostic is a trace emitted while building a snapshot. None of them are
// errors; they explain why a post was dropped or resolved a certain way.
type Diagnostic struct {
	Code   DiagnosticCode
	PostID string
	Detail string
	Count  int
}

// Observer receives diagnostics from the engine.
type Observer interface {
	Observe(d Diagnostic)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(d Diagnostic)

func (f ObserverFunc) Observe(d Diagnostic) { f(d) }

type nopObserver struct{}

func (nopObserver) Observe(Diagnostic) {}

// Observers fans a diagnostic out to several observers.
type Observers []Observer

func (o Observers) Observe(d Diagnostic) {
	for _, obs := range o {
		obs.Observe(d)
	}
}

// LogObserver writes diagnostics to a slog.Logger at debug level.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an Observer backed by logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(d Diagnostic) {
	attrs := []slog.Attr{slog.String("code", string(d.Code))}
	if d.PostID != "" {
		attrs = append(attrs, slog.String("post_id", d.PostID))
	}
	if d.Detail != "" {
		attrs = append(attrs, slog.String("detail", d.Detail))
	}
	if d.Count > 0 {
		attrs = append(attrs, slog.Int("count", d.Count))
	}
	o.logger.LogAttrs(context.Background(), slog.LevelDebug, "scrutiny diagnostic", attrs...)
}
