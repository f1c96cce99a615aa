package observability

import (
	"sync"
	"sync/atomic"
)

type StatsSnapshot struct {
	HarvestsTotal       uint64            `json:"harvests_total"`
	HarvestsExhausted   uint64            `json:"harvests_exhausted"`
	ProductsHarvested   uint64            `json:"products_harvested"`
	PagesRendered       uint64            `json:"pages_rendered"`
	ErrorsTotal         uint64            `json:"errors_total"`
	CandidateSecondsAvg float64           `json:"candidate_seconds_avg"`
	StrategyWins        map[string]uint64 `json:"strategy_wins,omitempty"`
	ErrorsByType        map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByStrategy    map[string]uint64 `json:"errors_by_strategy,omitempty"`
}

var (
	harvestsTotal     uint64
	harvestsExhausted uint64
	productsHarvested uint64
	pagesRendered     uint64
	errorsTotal       uint64

	candidateCount uint64
	candidateNanos uint64

	statsMu          sync.Mutex
	strategyWins     = map[string]uint64{}
	errorsByType     = map[string]uint64{}
	errorsByStrategy = map[string]uint64{}
)

func IncHarvest(exhausted bool) {
	atomic.AddUint64(&harvestsTotal, 1)
	if exhausted {
		atomic.AddUint64(&harvestsExhausted, 1)
	}
}

func AddProductsHarvested(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&productsHarvested, uint64(n))
}

func IncPagesRendered() {
	atomic.AddUint64(&pagesRendered, 1)
}

func IncStrategyWin(strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	statsMu.Lock()
	strategyWins[strategy]++
	statsMu.Unlock()
}

func ObserveCandidateDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&candidateCount, 1)
	atomic.AddUint64(&candidateNanos, uint64(seconds*1e9))
}

func IncError(errType, strategy string) {
	if errType == "" {
		errType = ErrorUnknown
	}
	if strategy == "" {
		strategy = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByStrategy[strategy]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	winsCopy := copyMap(strategyWins)
	errorsTypeCopy := copyMap(errorsByType)
	errorsStrategyCopy := copyMap(errorsByStrategy)
	statsMu.Unlock()

	count := atomic.LoadUint64(&candidateCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&candidateNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		HarvestsTotal:       atomic.LoadUint64(&harvestsTotal),
		HarvestsExhausted:   atomic.LoadUint64(&harvestsExhausted),
		ProductsHarvested:   atomic.LoadUint64(&productsHarvested),
		PagesRendered:       atomic.LoadUint64(&pagesRendered),
		ErrorsTotal:         atomic.LoadUint64(&errorsTotal),
		CandidateSecondsAvg: avg,
		StrategyWins:        winsCopy,
		ErrorsByType:        errorsTypeCopy,
		ErrorsByStrategy:    errorsStrategyCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
