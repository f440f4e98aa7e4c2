package so3mip

import (
	"fmt"
	"math"
)

// AddLogarithmicSOS2Constraint constrains λ to be a valid SOS2 weighting:
// λ(k) ∈ [0, 1], Σ λ(k) = 1, and at most two entries nonzero, which must be
// adjacent. The active interval is encoded into ⌈log₂(len(λ)-1)⌉ new binary
// variables through reflected Gray codes, so neighboring intervals differ in
// a single binary. Works for interval counts that are not powers of two:
// the spare codes admit no λ assignment and are never selected.
// Returns the binaries, most significant digit first.
func AddLogarithmicSOS2Constraint(p *Program, λ []Variable, name string) []Variable {
	if len(λ) < 2 {
		panic(fmt.Errorf("SOS2 needs at least two weights, got %d", len(λ)))
	}
	nIntervals := len(λ) - 1
	digits := CeilLog2(nIntervals)
	codes := ReflectedGrayCodes(digits)

	p.AddBoundingBoxConstraint(0, 1, λ...)
	sum := LinExpr{}
	for _, l := range λ {
		sum = sum.PlusVar(l, 1)
	}
	p.AddLinearEqualityConstraint(name+".sum", sum, 1)

	y := p.NewBinaryVariables(digits, name+".y")
	for j := 0; j < digits; j++ {
		// A weight λ(i) may only be nonzero when the selected interval is
		// adjacent to breakpoint i. If every interval adjacent to i carries
		// bit j = 1, then λ(i) > 0 forces y(j) = 1; all-zero bits force
		// y(j) = 0 the same way.
		up := LinExpr{}
		down := LinExpr{}
		for i := 0; i <= nIntervals; i++ {
			lo, hi := i-1, i
			if lo < 0 {
				lo = 0
			}
			if hi > nIntervals-1 {
				hi = nIntervals - 1
			}
			allOne, allZero := true, true
			for m := lo; m <= hi; m++ {
				if codes[m][j] == 1 {
					allZero = false
				} else {
					allOne = false
				}
			}
			if allOne {
				up = up.PlusVar(λ[i], 1)
			}
			if allZero {
				down = down.PlusVar(λ[i], 1)
			}
		}
		p.AddLinearConstraint(fmt.Sprintf("%s.up[%d]", name, j), up.PlusVar(y[j], -1), math.Inf(-1), 0)
		p.AddLinearConstraint(fmt.Sprintf("%s.down[%d]", name, j), down.PlusVar(y[j], 1), math.Inf(-1), 1)
	}
	return y
}

// AddUnitLengthConstraintWithLogarithmicSOS2 lower-bounds the squared norm
// of a 3-vector x whose coordinates carry the SOS2 weightings λ0, λ1, λ2
// over the breakpoints φ. Whenever x(i) ∈ [φ(j), φ(j+1)], the secant
// λ(j)·φ²(j) + λ(j+1)·φ²(j+1) dominates x(i)², so requiring
// Σᵢ Σₖ λᵢ(k)·φ²(k) >= 1 relaxes the unit-length equality |x| = 1.
func AddUnitLengthConstraintWithLogarithmicSOS2(p *Program, φ []float64, λ0, λ1, λ2 []Variable) {
	if len(λ0) != len(φ) || len(λ1) != len(φ) || len(λ2) != len(φ) {
		panic("breakpoints and all three weightings must have matching lengths")
	}
	ub := LinExpr{}
	for k, φk := range φ {
		φ2 := φk * φk
		ub = ub.PlusVar(λ0[k], φ2)
		ub = ub.PlusVar(λ1[k], φ2)
		ub = ub.PlusVar(λ2[k], φ2)
	}
	p.AddLinearConstraint("unit_length_secant", ub, 1, math.Inf(1))
}

// intervalActivationExpr returns Σ over digits of (1 - b(d)) where the Gray
// code of interval has bit d set, and b(d) where it is clear. The expression
// is 0 exactly when the binaries spell the interval's code, and >= 1 for
// every other integral assignment.
func intervalActivationExpr(codes [][]int, interval int, b []Variable) LinExpr {
	if interval < 0 || interval >= len(codes) {
		panic(fmt.Errorf("interval %d outside the %d Gray codes", interval, len(codes)))
	}
	if len(b) != len(codes[interval]) {
		panic(fmt.Errorf("%d binaries cannot spell a %d-digit code", len(b), len(codes[interval])))
	}
	e := LinExpr{}
	for d, bit := range codes[interval] {
		if bit == 1 {
			e = e.PlusConst(1).PlusVar(b[d], -1)
		} else {
			e = e.PlusVar(b[d], 1)
		}
	}
	return e
}

// intervalActivationCost is the numeric twin of intervalActivationExpr,
// evaluated at a concrete binary assignment.
func intervalActivationCost(codes [][]int, interval int, bits []float64) float64 {
	if interval < 0 || interval >= len(codes) {
		panic(fmt.Errorf("interval %d outside the %d Gray codes", interval, len(codes)))
	}
	if len(bits) != len(codes[interval]) {
		panic(fmt.Errorf("%d bits cannot spell a %d-digit code", len(bits), len(codes[interval])))
	}
	cost := 0.0
	for d, bit := range codes[interval] {
		if bit == 1 {
			cost += 1 - bits[d]
		} else {
			cost += bits[d]
		}
	}
	return cost
}

// AddBilinearProductMcCormickEnvelope returns a new continuous variable w
// constrained to the convex hull of the product x*y over the interval pair
// selected by the Gray-coded binaries Bx and By (as returned by
// AddLogarithmicSOS2Constraint for x's and y's weightings over the
// breakpoints φx and φy). On each interval pair the four McCormick
// inequalities bound w; pairs that are not selected are released through a
// big-M times the pair's activation expression.
func AddBilinearProductMcCormickEnvelope(p *Program, x, y Variable, φx, φy []float64, Bx, By []Variable, name string) Variable {
	if len(φx) < 2 || len(φy) < 2 {
		panic("bilinear envelope needs at least one interval per factor")
	}
	if len(Bx) != CeilLog2(len(φx)-1) {
		panic(fmt.Errorf("%d binaries cannot select among %d intervals", len(Bx), len(φx)-1))
	}
	if len(By) != CeilLog2(len(φy)-1) {
		panic(fmt.Errorf("%d binaries cannot select among %d intervals", len(By), len(φy)-1))
	}
	codesX := ReflectedGrayCodes(len(Bx))
	codesY := ReflectedGrayCodes(len(By))

	wmin, wmax := math.Inf(1), math.Inf(-1)
	maxAbsX, maxAbsY := 0.0, 0.0
	for _, xv := range φx {
		maxAbsX = math.Max(maxAbsX, math.Abs(xv))
		for _, yv := range φy {
			wmin = math.Min(wmin, xv*yv)
			wmax = math.Max(wmax, xv*yv)
		}
	}
	for _, yv := range φy {
		maxAbsY = math.Max(maxAbsY, math.Abs(yv))
	}
	// Any McCormick residual over the full breakpoint range is below 4·XY,
	// where X and Y bound |x| and |y|. One unit of activation releases it.
	bigM := 4 * maxAbsX * maxAbsY

	w := p.NewContinuousVariables(1, name)[0]
	p.AddBoundingBoxConstraint(wmin, wmax, w)

	for i := 0; i < len(φx)-1; i++ {
		for j := 0; j < len(φy)-1; j++ {
			gate := intervalActivationExpr(codesX, i, Bx).Plus(intervalActivationExpr(codesY, j, By))
			release := gate.Scale(bigM)
			xl, xu := φx[i], φx[i+1]
			yl, yu := φy[j], φy[j+1]

			under1 := Term(w, 1).PlusVar(x, -yl).PlusVar(y, -xl).PlusConst(xl * yl)
			p.AddLinearConstraint(fmt.Sprintf("%s.mc[%d][%d].ll", name, i, j),
				under1.Plus(release), 0, math.Inf(1))
			under2 := Term(w, 1).PlusVar(x, -yu).PlusVar(y, -xu).PlusConst(xu * yu)
			p.AddLinearConstraint(fmt.Sprintf("%s.mc[%d][%d].uu", name, i, j),
				under2.Plus(release), 0, math.Inf(1))

			over1 := Term(w, 1).PlusVar(x, -yl).PlusVar(y, -xu).PlusConst(xu * yl)
			p.AddLinearConstraint(fmt.Sprintf("%s.mc[%d][%d].ul", name, i, j),
				over1.Minus(release), math.Inf(-1), 0)
			over2 := Term(w, 1).PlusVar(x, -yu).PlusVar(y, -xl).PlusConst(xl * yu)
			p.AddLinearConstraint(fmt.Sprintf("%s.mc[%d][%d].lu", name, i, j),
				over2.Minus(release), math.Inf(-1), 0)
		}
	}
	return w
}
