// Package findings keeps a durable record of problems surfaced by
// diagnostics and load tests. Failed checks file findings automatically;
// admins work through them over the API.
package findings

import "time"

// Severity grades how urgent a finding is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Level orders severities for threshold comparisons.
func (s Severity) Level() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Status tracks a finding through its lifecycle.
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Source says what filed the finding.
type Source string

const (
	SourceDiag     Source = "diag"
	SourceLoadtest Source = "loadtest"
	SourceUser     Source = "user"
)

// Finding is one recorded problem.
type Finding struct {
	ID         string     `json:"id"`
	CheckName  string     `json:"check_name,omitempty"`
	Severity   Severity   `json:"severity"`
	Title      string     `json:"title"`
	Detail     string     `json:"detail,omitempty"`
	Status     Status     `json:"status"`
	Source     Source     `json:"source"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ListFilter controls which findings to return.
type ListFilter struct {
	Status    Status
	Severity  Severity
	CheckName string
	Source    Source
	Limit     int
	Offset    int
}
