package humanize

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/random"
)

// Point is a position in CSS pixels.
type Point struct {
	X, Y float64
}

// QuadraticBezier evaluates the curve p0→p1→p2 at t in [0, 1].
func QuadraticBezier(p0, p1, p2 Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
		Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
	}
}

// Strategy is one named interaction pattern.
type Strategy struct {
	Name   string
	Weight float64
	Run    func(ctx context.Context, page collector.Page)
}

// Selector returns the index of the chosen weight.
type Selector func(weights []float64) int

// WeightedSelector picks proportionally to weight using src.
func WeightedSelector(src random.Source) Selector {
	return func(weights []float64) int {
		return random.Weighted(src, weights)
	}
}

// StrategySet is a weighted collection of strategies.
type StrategySet struct {
	strategies []Strategy
	selector   Selector
}

// NewStrategySet builds a set that chooses with sel.
func NewStrategySet(sel Selector, strategies ...Strategy) StrategySet {
	return StrategySet{strategies: strategies, selector: sel}
}

// Pick draws n strategies with replacement.
func (s StrategySet) Pick(n int) []Strategy {
	if len(s.strategies) == 0 || n <= 0 {
		return nil
	}
	weights := make([]float64, len(s.strategies))
	for i, st := range s.strategies {
		weights[i] = st.Weight
	}
	out := make([]Strategy, 0, n)
	for range n {
		idx := s.selector(weights)
		if idx < 0 || idx >= len(s.strategies) {
			idx = 0
		}
		out = append(out, s.strategies[idx])
	}
	return out
}

// Strategies returns scroll, pointer and keys with equal weight.
func (e *Engine) Strategies() StrategySet {
	return NewStrategySet(e.selector,
		Strategy{Name: "scroll", Weight: 1, Run: e.SimulateScroll},
		Strategy{Name: "pointer", Weight: 1, Run: e.SimulatePointer},
		Strategy{Name: "keys", Weight: 1, Run: e.SimulateKeys},
	)
}

// RunStrategies picks n strategies and runs them in order, returning their names.
func (e *Engine) RunStrategies(ctx context.Context, page collector.Page, n int) []string {
	picked := e.Strategies().Pick(n)
	names := make([]string, 0, len(picked))
	for _, st := range picked {
		st.Run(ctx, page)
		names = append(names, st.Name)
	}
	e.logger.Debug("humanization strategies ran", zap.Strings("strategies", names))
	return names
}
