package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RebalanceStatus is the explicit tag of a cycle outcome. Callers branch on
// the tag, never on presence or absence of fields.
type RebalanceStatus int

const (
	// StatusBalanced means the portfolio was already within thresholds.
	StatusBalanced RebalanceStatus = iota
	// StatusExecuted means at least one operation was submitted.
	StatusExecuted
	// StatusAborted means the cycle stopped before execution.
	StatusAborted
	// StatusRejected means another cycle was already in flight.
	StatusRejected
)

// String returns the string representation of the status.
func (s RebalanceStatus) String() string {
	switch s {
	case StatusBalanced:
		return "balanced"
	case StatusExecuted:
		return "executed"
	case StatusAborted:
		return "aborted"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status for JSON persistence.
func (s RebalanceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a persisted status tag.
func (s *RebalanceStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "balanced":
		*s = StatusBalanced
	case "executed":
		*s = StatusExecuted
	case "aborted":
		*s = StatusAborted
	case "rejected":
		*s = StatusRejected
	default:
		*s = StatusAborted
	}
	return nil
}

// OperationResult is the per-operation execution outcome. A failed operation
// never aborts the remaining batch.
type OperationResult struct {
	Operation RebalanceOperation `json:"operation"`
	Success   bool               `json:"success"`
	DryRun    bool               `json:"dry_run,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// RebalanceResult is the structured outcome of one rebalance cycle. All
// failure paths are expressed here; no errors escape the orchestrator.
type RebalanceResult struct {
	Timestamp    time.Time            `json:"ts"`
	Status       RebalanceStatus      `json:"status"`
	Reason       string               `json:"reason,omitempty"`
	Operations   []RebalanceOperation `json:"operations,omitempty"`
	Results      []OperationResult    `json:"results,omitempty"`
	SuccessCount int                  `json:"success_count"`
	TotalCount   int                  `json:"total_count"`
	// UninvestedRemainder is the portfolio-level sum of per-ticker value that
	// could not be allocated to whole lots. Informational only.
	UninvestedRemainder decimal.Decimal `json:"uninvested_remainder"`
}

// Succeeded reports whether every submitted operation succeeded.
func (r *RebalanceResult) Succeeded() bool {
	switch r.Status {
	case StatusBalanced:
		return true
	case StatusExecuted:
		return r.SuccessCount == r.TotalCount
	default:
		return false
	}
}

// RebalanceRecord bundles a persisted result with its log index.
type RebalanceRecord struct {
	Index  uint64
	Result RebalanceResult
}
