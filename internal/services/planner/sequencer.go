package planner

import (
	"sort"

	"github.com/suenot/etf-monitor/internal/domain"
)

// Sequence orders planned operations ascending by signed value delta, so the
// largest sells run first and free cash before any buy is attempted. The
// ordering is a correctness requirement for cash-constrained accounts, not an
// optimization. Ties break by ticker for determinism.
func Sequence(operations []domain.RebalanceOperation) []domain.RebalanceOperation {
	sequenced := make([]domain.RebalanceOperation, len(operations))
	copy(sequenced, operations)

	sort.SliceStable(sequenced, func(i, j int) bool {
		if sequenced[i].ValueDelta.Equal(sequenced[j].ValueDelta) {
			return sequenced[i].Ticker < sequenced[j].Ticker
		}
		return sequenced[i].ValueDelta.LessThan(sequenced[j].ValueDelta)
	})

	return sequenced
}
