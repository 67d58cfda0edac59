package model

import "time"

// UsageRecord is the monthly counter for one user of a tenant joined with the
// tenant's plan terms.
type UsageRecord struct {
	TenantID     string
	UserID       string
	Period       string
	Count        int64
	Limit        int64
	AllowOverage bool
	UpdatedAt    time.Time
}

// UsageDecision is the verdict of the usage gate.
type UsageDecision struct {
	Allowed      bool
	CurrentUsage int64
	Limit        int64
	IsOverage    bool
	Reason       string
}

// UsagePeriod is the counter bucket for t (calendar month, UTC).
func UsagePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// UsageSummary aggregates one tenant's month for reports.
type UsageSummary struct {
	TenantID    string
	Period      string
	ActiveUsers int64
	Total       int64
	Limit       int64
	TopUsers    []UserUsage
}

type UserUsage struct {
	UserID string
	Count  int64
}
