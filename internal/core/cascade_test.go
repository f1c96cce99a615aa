package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/observability"
	"github.com/baxromumarov/shelf-harvester/internal/scraper"
)

func intStep(label string, value []int, err error) Step[[]int] {
	return Step[[]int]{Label: label, Run: func(context.Context) ([]int, error) { return value, err }}
}

func intSize(v []int) int { return len(v) }

func TestFirst_StopsAtFirstNonEmpty(t *testing.T) {
	rec := &observability.Recorder{}
	ran := false
	steps := []Step[[]int]{
		intStep("a", nil, errors.New("boom")),
		intStep("b", []int{}, nil),
		intStep("c", []int{1, 2}, nil),
		{Label: "d", Run: func(context.Context) ([]int, error) {
			ran = true
			return []int{9}, nil
		}},
	}

	won := First(context.Background(), CascadeOptions{Pipeline: "test", Sink: rec}, steps, intSize)

	require.True(t, won.OK())
	assert.Equal(t, "c", won.Label)
	assert.Equal(t, []int{1, 2}, won.Value)
	assert.False(t, ran)
	require.Len(t, won.Trace, 3)
	assert.Equal(t, observability.EventFailed, won.Trace[0].Kind)
	assert.Equal(t, observability.EventEmpty, won.Trace[1].Kind)
	assert.Equal(t, 2, won.Trace[2].Items)
	assert.Equal(t, []string{
		"a:attempted", "a:failed",
		"b:attempted", "b:empty",
		"c:attempted", "c:succeeded",
	}, rec.Kinds())
}

func TestFirst_RecoversPanic(t *testing.T) {
	steps := []Step[[]int]{
		{Label: "panics", Run: func(context.Context) ([]int, error) {
			var m map[string]int
			m["x"]++
			return nil, nil
		}},
		intStep("ok", []int{7}, nil),
	}

	won := First(context.Background(), CascadeOptions{}, steps, intSize)

	assert.Equal(t, "ok", won.Label)
	require.Len(t, won.Trace, 2)
	assert.ErrorIs(t, won.Trace[0].Err, observability.ErrExtractionPanic)
	assert.Equal(t, observability.ErrorExtractionPanic, won.Trace[0].ErrorType)
}

func TestFirst_TimeoutIsFailure(t *testing.T) {
	steps := []Step[[]int]{
		{Label: "slow", Run: func(ctx context.Context) ([]int, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		{Label: "late", Run: func(ctx context.Context) ([]int, error) {
			<-ctx.Done()
			return []int{1}, nil
		}},
		intStep("fast", []int{3}, nil),
	}

	won := First(context.Background(), CascadeOptions{Timeout: 10 * time.Millisecond}, steps, intSize)

	assert.Equal(t, "fast", won.Label)
	require.Len(t, won.Trace, 3)
	assert.Equal(t, observability.ErrorSourceUnreachable, won.Trace[0].ErrorType)
	assert.ErrorIs(t, won.Trace[1].Err, context.DeadlineExceeded)
}

func TestFirst_Exhausted(t *testing.T) {
	rec := &observability.Recorder{}
	steps := []Step[[]int]{intStep("a", nil, nil), intStep("b", nil, errors.New("down"))}

	won := First(context.Background(), CascadeOptions{Sink: rec}, steps, intSize)

	assert.False(t, won.OK())
	assert.Nil(t, won.Value)
	kinds := rec.Kinds()
	assert.Equal(t, ":exhausted", kinds[len(kinds)-1])
	last := rec.Events()[len(kinds)-1]
	assert.ErrorIs(t, last.Err, catalog.ErrExhausted)
}

func TestFirst_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	won := First(ctx, CascadeOptions{}, []Step[[]int]{intStep("a", []int{1}, nil)}, intSize)
	assert.False(t, won.OK())
	assert.Empty(t, won.Trace)
}

func candidate(label string, items []scraper.RawItem, calls *[]string) Candidate {
	return Candidate{Label: label, Extract: func(context.Context) (scraper.Outcome, error) {
		*calls = append(*calls, label)
		return scraper.Outcome{Items: items, Source: label}, nil
	}}
}

func TestCascade_NeverCombines(t *testing.T) {
	var calls []string
	c := NewCascade(CascadeOptions{})

	h := c.Run(context.Background(), []Candidate{
		candidate("first", nil, &calls),
		candidate("second", []scraper.RawItem{
			{"id": "1", "name": "Milk"},
			{"id": "2", "name": "Bread"},
		}, &calls),
		candidate("third", []scraper.RawItem{{"id": "3", "name": "Cheese"}}, &calls),
	})

	assert.Equal(t, "second", h.Strategy)
	assert.False(t, h.Exhausted())
	assert.Equal(t, []string{"first", "second"}, calls)
	require.Len(t, h.Products, 2)
	assert.Equal(t, "Milk", h.Products[0].Name)
	assert.Equal(t, "Bread", h.Products[1].Name)
}

func TestCascade_NormalizesAndDedups(t *testing.T) {
	var calls []string
	h := NewCascade(CascadeOptions{}).Run(context.Background(), []Candidate{
		candidate("only-placeholders", []scraper.RawItem{{"title": "Товар без названия"}, {"name": "  "}}, &calls),
		candidate("dupes", []scraper.RawItem{
			{"id": "1", "name": "A", "price": 10},
			{"id": "1", "name": "A", "price": 12},
			{"id": "2", "name": "A"},
		}, &calls),
	})

	assert.Equal(t, "dupes", h.Strategy)
	require.Len(t, h.Products, 2)
	assert.Equal(t, "10", h.Products[0].Price)
	assert.Equal(t, "2", h.Products[1].ID)
	assert.True(t, h.Products[1].InStock)
}

func TestCascade_SyntheticIDUsesCandidateLabel(t *testing.T) {
	var calls []string
	h := NewCascade(CascadeOptions{}).Run(context.Background(), []Candidate{
		candidate("markup", []scraper.RawItem{{"name": "Milk", "price": "120"}}, &calls),
	})

	require.Len(t, h.Products, 1)
	assert.Equal(t, scraper.SyntheticID("Milk", "120", "markup"), h.Products[0].ID)
}
