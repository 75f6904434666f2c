package scan

// FlipRef identifies one flip and the identity that submitted it.
type FlipRef struct {
	Cid     string `json:"cid"`
	Address string `json:"address"`
}

// OffenseRecord is the per-address tally for one reporting scope.
type OffenseRecord struct {
	Address        string `json:"address"`
	Count          int    `json:"count"`
	RepeatOffender bool   `json:"repeatOffender"`
}

// EpochReport is the aggregation result for a single epoch. It is
// self-describing about its own completeness: flips whose flag could not be
// resolved are listed, never silently dropped from the totals.
type EpochReport struct {
	Epoch           uint64          `json:"epoch"`
	Entries         []OffenseRecord `json:"entries"`
	UnresolvedFlips []string        `json:"unresolvedFlips"`
}

// WindowReport holds one report per scanned epoch in [StartEpoch, EndEpoch],
// the epochs that could not be listed at all, and an explicit cross-epoch
// total. Per-epoch counts are never summed implicitly.
type WindowReport struct {
	StartEpoch    uint64          `json:"startEpoch"`
	EndEpoch      uint64          `json:"endEpoch"`
	Reports       []EpochReport   `json:"reports"`
	SkippedEpochs []uint64        `json:"skippedEpochs"`
	Totals        []OffenseRecord `json:"totals"`
}

// Report returns the report for the given epoch, if the window produced one.
func (w *WindowReport) Report(epoch uint64) (*EpochReport, bool) {
	for i := range w.Reports {
		if w.Reports[i].Epoch == epoch {
			return &w.Reports[i], true
		}
	}
	return nil, false
}
