package scraper

// RawItem is one source-shaped record before normalization. Keys and value
// types depend entirely on the strategy that produced it.
type RawItem map[string]any

// Outcome is the result of a single strategy attempt.
type Outcome struct {
	Items  []RawItem
	Source string
}

func (o Outcome) OK() bool {
	return len(o.Items) > 0
}
