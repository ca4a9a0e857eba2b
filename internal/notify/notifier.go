package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Template identifies a transactional email template. Rendering and delivery
// belong to the external mail provider; the core only selects a template and
// supplies variables.
type Template string

const (
	TemplateSubmissionReceived Template = "verification_submission_received"
	TemplateApproved           Template = "verification_approved"
	TemplateRejected           Template = "verification_rejected"
	TemplateRetentionWarning   Template = "verification_retention_warning"
	TemplateRetentionExpired   Template = "verification_retention_expired"
)

// Notifier is the transactional email collaborator. All sends are
// fire-and-forget with respect to the core transaction: callers log failures
// and never propagate them.
type Notifier interface {
	Send(ctx context.Context, template Template, recipient string, vars map[string]string) error
}

// LogNotifier writes notifications to the structured log instead of a mail
// provider. Used when no provider is configured and in local development.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, template Template, recipient string, vars map[string]string) error {
	n.logger.Info("notification dispatched",
		"template", string(template),
		"recipient", recipient,
		"vars", vars,
	)
	return nil
}

// Recorder captures sends for assertions in tests.
type Recorder struct {
	mu    sync.Mutex
	Sends []RecordedSend
	Err   error
}

type RecordedSend struct {
	Template  Template
	Recipient string
	Vars      map[string]string
}

func (r *Recorder) Send(_ context.Context, template Template, recipient string, vars map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sends = append(r.Sends, RecordedSend{Template: template, Recipient: recipient, Vars: vars})
	return nil
}

// Count returns the number of recorded sends for a template.
func (r *Recorder) Count(template Template) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.Sends {
		if s.Template == template {
			n++
		}
	}
	return n
}
