package ratelimit

import "time"

// Action names the rate-limited operation. Limits are tracked per
// (subject, action) so future actions get independent budgets.
type Action string

// ActionDocumentSubmit is the identity-document intake path. This path must
// fail closed when the counter store is unavailable.
const ActionDocumentSubmit Action = "verification_submit"

// Decision is the outcome of a rate-limit check, with enough metadata for the
// caller to surface retry timing.
type Decision struct {
	Allowed         bool
	HourlyRemaining int
	DailyRemaining  int
	ResetAt         time.Time
}

// Limits caps attempts over the two rolling windows.
type Limits struct {
	HourlyLimit int
	DailyLimit  int
}

// DefaultLimits matches the intake policy: 3 submissions per rolling hour,
// 10 per rolling day.
var DefaultLimits = Limits{HourlyLimit: 3, DailyLimit: 10}

const (
	hourlyWindow = time.Hour
	dailyWindow  = 24 * time.Hour
)
