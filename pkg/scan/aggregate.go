package scan

import "sort"

// Aggregator accumulates resolved (address, wrongWords) observations for one
// reporting scope. Accumulation is associative and commutative, so the
// result never depends on the order observations arrive in.
type Aggregator struct {
	counts map[string]int
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: map[string]int{}}
}

// Observe records one resolved flip for the given address. Every observed
// address appears in the final entries, offender or not.
func (a *Aggregator) Observe(address string, wrongWords bool) {
	if _, ok := a.counts[address]; !ok {
		a.counts[address] = 0
	}
	if wrongWords {
		a.counts[address]++
	}
}

// Entries returns the tally sorted by count descending, ties broken by
// address ascending, so identical inputs always render identically.
func (a *Aggregator) Entries() []OffenseRecord {
	return sortedEntries(a.counts)
}

// SumCounts union-sums per-address counts across several epoch reports into
// a single cross-window tally. This is an explicit separate step; per-epoch
// reports are never merged implicitly.
func SumCounts(reports []EpochReport) []OffenseRecord {
	total := map[string]int{}
	for _, r := range reports {
		for _, e := range r.Entries {
			total[e.Address] += e.Count
		}
	}
	return sortedEntries(total)
}

func sortedEntries(counts map[string]int) []OffenseRecord {
	out := make([]OffenseRecord, 0, len(counts))
	for addr, n := range counts {
		out = append(out, OffenseRecord{
			Address:        addr,
			Count:          n,
			RepeatOffender: n > 1,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Address < out[j].Address
	})
	return out
}
