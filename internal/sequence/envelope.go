package sequence

import (
	"fmt"
	"sort"
)

func ease(kind string, u float64) float64 {
	switch kind {
	case "smooth":
		return u * u * (3 - 2*u)
	case "cubic":
		return u * u * u * (u*(u*6-15) + 10)
	default:
		return u
	}
}

func validEase(kind string) bool {
	switch kind {
	case "", "linear", "smooth", "cubic":
		return true
	}
	return false
}

// Validate checks that keys are ascending and easings are known.
func (e Envelope) Validate() error {
	for i, k := range e.Keys {
		if !validEase(k.Ease) {
			return fmt.Errorf("key %d: unknown ease %q", i, k.Ease)
		}
		if i > 0 && k.T < e.Keys[i-1].T {
			return fmt.Errorf("key %d: t=%v before previous key", i, k.T)
		}
	}
	return nil
}

// Eval returns the envelope value at t seconds, holding the first and last
// values outside the keyed range. An empty envelope evaluates to 0.
func (e Envelope) Eval(t float64) float64 {
	n := len(e.Keys)
	switch {
	case n == 0:
		return 0
	case t <= e.Keys[0].T:
		return e.Keys[0].V
	case t >= e.Keys[n-1].T:
		return e.Keys[n-1].V
	}
	// first key strictly after t; t sits in [j-1, j)
	j := sort.Search(n, func(i int) bool { return e.Keys[i].T > t })
	a, b := e.Keys[j-1], e.Keys[j]
	span := b.T - a.T
	if span <= 0 {
		return b.V
	}
	return a.V + (b.V-a.V)*ease(a.Ease, (t-a.T)/span)
}
