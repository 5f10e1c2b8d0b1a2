package ratelimit

// Policy is a named fixed-window limit applied per actor
type Policy struct {
	Name          string
	Limit         int64 // Requests allowed per window
	WindowSeconds int
}

// Default policies. Forced refreshes pull the whole sheet and count
// against the Smartsheet API quota, so they get the tightest budget.
var (
	DefaultRefreshPolicy = Policy{
		Name:          "refresh",
		Limit:         6,
		WindowSeconds: 60,
	}
	DefaultMutationPolicy = Policy{
		Name:          "mutation",
		Limit:         120,
		WindowSeconds: 60,
	}
)

// WithLimit returns a copy of p with a different limit. Zero or negative keeps p.
func (p Policy) WithLimit(limit int64) Policy {
	if limit > 0 {
		p.Limit = limit
	}
	return p
}
