package models

import (
	"fmt"
	"strings"
)

// ValidationError lists every violated rule of a payload or config.
type ValidationError struct {
	Subject  string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

func (w WeightConfig) Validate() error {
	v := &ValidationError{Subject: "weight config"}
	checkRange := func(class string, max, min float64) {
		if min < 0 {
			v.add("%s_min must be >= 0 (got %g)", class, min)
		}
		if max <= min {
			v.add("%s_max must be greater than %s_min (got %g <= %g)", class, class, max, min)
		}
	}
	checkRange("texas", w.TexasMax, w.TexasMin)
	checkRange("other", w.OtherMax, w.OtherMin)
	if w.LoadTargetPct <= 0 || w.LoadTargetPct > 1 {
		v.add("load_target_pct must be in (0, 1] (got %g)", w.LoadTargetPct)
	}
	return v.orNil()
}

func (p PreviewResult) Validate() error {
	v := &ValidationError{Subject: "preview response"}
	if p.Headers == nil {
		v.add("headers missing")
	}
	if p.RowCount < 0 {
		v.add("rowCount must be >= 0 (got %d)", p.RowCount)
	}
	if len(p.Sample) > p.RowCount && p.RowCount >= 0 {
		v.add("sample has %d rows but rowCount is %d", len(p.Sample), p.RowCount)
	}
	return v.orNil()
}

// ReadyToOptimize reports whether the preview allows an optimize request.
func (p *PreviewResult) ReadyToOptimize() bool {
	return p != nil && len(p.MissingRequiredColumns) == 0
}

func (b ResultBundle) Validate() error {
	v := &ValidationError{Subject: "optimize response"}
	trucks := make(map[int]struct{}, len(b.Trucks))
	for i, t := range b.Trucks {
		if t.TruckNumber <= 0 {
			v.add("trucks[%d]: truckNumber must be positive (got %d)", i, t.TruckNumber)
		}
		if _, dup := trucks[t.TruckNumber]; dup {
			v.add("trucks[%d]: duplicate truckNumber %d", i, t.TruckNumber)
		}
		trucks[t.TruckNumber] = struct{}{}
		if t.TotalLines < 0 || t.TotalPieces < 0 {
			v.add("truck %d: negative line or piece count", t.TruckNumber)
		}
		if t.PercentOverwidth < 0 || t.PercentOverwidth > 100 {
			v.add("truck %d: percentOverwidth out of range (got %g)", t.TruckNumber, t.PercentOverwidth)
		}
	}
	for i, a := range b.Assignments {
		if _, ok := trucks[a.TruckNumber]; !ok {
			v.add("assignments[%d]: truckNumber %d has no truck", i, a.TruckNumber)
		}
		if a.PiecesOnTransport < 0 || a.PiecesOnTransport > a.TotalReadyPieces {
			v.add("assignments[%d]: piecesOnTransport %d exceeds totalReadyPieces %d", i, a.PiecesOnTransport, a.TotalReadyPieces)
		}
	}
	for _, key := range b.Sections.Keys() {
		for _, n := range b.Sections.Get(key) {
			if _, ok := trucks[n]; !ok {
				v.add("sections[%s]: truckNumber %d has no truck", key, n)
			}
		}
	}
	return v.orNil()
}
