// Package audit records security-relevant gateway events. Token records are
// never deleted, so the audit trail stays joinable against them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"storegate/pkg/requestcontext"
)

// Publisher writes audit events to the structured log. Events share the
// "audit" marker so they can be filtered out of operational noise.
type Publisher struct {
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Emit records one event. attrs are alternating key/value pairs in slog
// style; the request ID is attached automatically when present.
func (p *Publisher) Emit(ctx context.Context, action string, attrs ...any) {
	base := []any{
		"audit", true,
		"action", action,
		"at", time.Now().UTC(),
	}
	if rid := requestcontext.RequestID(ctx); rid != "" {
		base = append(base, "request_id", rid)
	}
	p.logger.InfoContext(ctx, "audit event", append(base, attrs...)...)
}
