package so3mip

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FlipVector returns v with the signs the octant dictates: bit 2 of octant
// negates x, bit 1 negates y, bit 0 negates z. Octant 0 is (+, +, +) and
// octant 7 is (-, -, -). v must lie in the first orthant.
func FlipVector(v r3.Vec, octant int) r3.Vec {
	if octant < 0 || octant > 7 {
		panic(fmt.Errorf("octant %d out of range", octant))
	}
	if !inFirstOrthant(v) {
		panic("can only flip a first-orthant vector")
	}
	if octant&4 != 0 {
		v.X = -v.X
	}
	if octant&2 != 0 {
		v.Y = -v.Y
	}
	if octant&1 != 0 {
		v.Z = -v.Z
	}
	return v
}

// BoxOctant tags one grid cell of the positive octant together with one of
// the eight sign octants. Cell (XI, YI, ZI) spans
// [XI/N, (XI+1)/N] × [YI/N, (YI+1)/N] × [ZI/N, (ZI+1)/N] before the
// octant's sign flips are applied.
type BoxOctant struct {
	XI, YI, ZI int
	Octant     int
}

// fullAxisIntervals maps the positive-octant interval indices onto the full
// axis of 2N intervals: index i+N where the octant keeps the axis positive,
// N-1-i where it negates it (negative intervals mirror the positive ones).
func (bo BoxOctant) fullAxisIntervals(numIntervalsPerHalfAxis int) [3]int {
	if bo.Octant < 0 || bo.Octant > 7 {
		panic(fmt.Errorf("octant %d out of range", bo.Octant))
	}
	n := numIntervalsPerHalfAxis
	idx := [3]int{bo.XI, bo.YI, bo.ZI}
	var full [3]int
	for axis := 0; axis < 3; axis++ {
		if idx[axis] < 0 || idx[axis] >= n {
			panic(fmt.Errorf("interval %d outside the %d per half axis", idx[axis], n))
		}
		if bo.Octant&(4>>axis) == 0 {
			full[axis] = idx[axis] + n
		} else {
			full[axis] = n - 1 - idx[axis]
		}
	}
	return full
}

// ActivationExprs returns one expression per axis over the Gray digit
// variables B, where B[axis] holds the digits of that axis's interval
// choice, most significant first. Every expression is nonnegative for
// integral digits, and all three vanish exactly when the digits select this
// cell and octant.
func (bo BoxOctant) ActivationExprs(codes [][]int, B [3][]Variable, numIntervalsPerHalfAxis int) [3]LinExpr {
	full := bo.fullAxisIntervals(numIntervalsPerHalfAxis)
	var exprs [3]LinExpr
	for axis := 0; axis < 3; axis++ {
		exprs[axis] = intervalActivationExpr(codes, full[axis], B[axis])
	}
	return exprs
}

// ActivationCosts is the numeric twin of ActivationExprs, evaluated at a
// concrete digit assignment.
func (bo BoxOctant) ActivationCosts(codes [][]int, bits [3][]float64, numIntervalsPerHalfAxis int) [3]float64 {
	full := bo.fullAxisIntervals(numIntervalsPerHalfAxis)
	var costs [3]float64
	for axis := 0; axis < 3; axis++ {
		costs[axis] = intervalActivationCost(codes, full[axis], bits[axis])
	}
	return costs
}

// OrthantAuxVars are the auxiliary variables one column pair receives from
// AddNotInSameOrOppositeOrthantConstraint: T(i) bounds
// |B(i,Col0) + B(i,Col1) - 1| and S(i) bounds |B(i,Col0) - B(i,Col1)|.
type OrthantAuxVars struct {
	Col0, Col1 int
	T, S       []Variable
}

// AddNotInSameOrOppositeOrthantConstraint cuts off sign patterns that would
// place two columns of a rotation matrix in the same or in the opposite
// octant. Orthogonal columns can always avoid both: a pair in the same
// octant has nonnegative inner product, zero only on the octant boundary,
// where a zero coordinate's sign bit is free to move the column elsewhere.
// With B(i, j) the sign binary of R(i, j), T(i) >= |B(i,c0)+B(i,c1)-1| is 1
// on every axis exactly when the octants coincide and S(i) >=
// |B(i,c0)-B(i,c1)| is 1 on every axis exactly when they oppose, so capping
// both sums at 2 forbids the two patterns. The sign binaries are only
// faithful when the interval count per half axis is a power of two;
// otherwise this adds nothing and returns nil.
func AddNotInSameOrOppositeOrthantConstraint(p *Program, B VarMatrix3, numIntervalsPerHalfAxis int) []OrthantAuxVars {
	if numIntervalsPerHalfAxis != 1<<CeilLog2(numIntervalsPerHalfAxis) {
		return nil
	}
	pairs := [3][2]int{{0, 1}, {0, 2}, {1, 2}}
	aux := make([]OrthantAuxVars, 0, len(pairs))
	for _, pair := range pairs {
		c0, c1 := pair[0], pair[1]
		t := p.NewContinuousVariables(3, fmt.Sprintf("t[%d][%d]", c0, c1))
		s := p.NewContinuousVariables(3, fmt.Sprintf("s[%d][%d]", c0, c1))
		sumT, sumS := LinExpr{}, LinExpr{}
		for i := 0; i < 3; i++ {
			sumT = sumT.PlusVar(t[i], 1)
			sumS = sumS.PlusVar(s[i], 1)
			same := Term(B[i][c0], 1).PlusVar(B[i][c1], 1).PlusConst(-1)
			p.AddLinearConstraint(fmt.Sprintf("same_octant[%d][%d][%d].above", c0, c1, i),
				Term(t[i], 1).Minus(same), 0, math.Inf(1))
			p.AddLinearConstraint(fmt.Sprintf("same_octant[%d][%d][%d].below", c0, c1, i),
				Term(t[i], 1).Plus(same), 0, math.Inf(1))
			opp := Term(B[i][c0], 1).PlusVar(B[i][c1], -1)
			p.AddLinearConstraint(fmt.Sprintf("opposite_octant[%d][%d][%d].above", c0, c1, i),
				Term(s[i], 1).Minus(opp), 0, math.Inf(1))
			p.AddLinearConstraint(fmt.Sprintf("opposite_octant[%d][%d][%d].below", c0, c1, i),
				Term(s[i], 1).Plus(opp), 0, math.Inf(1))
		}
		p.AddLinearConstraint(fmt.Sprintf("same_octant[%d][%d].sum", c0, c1), sumT, math.Inf(-1), 2)
		p.AddLinearConstraint(fmt.Sprintf("opposite_octant[%d][%d].sum", c0, c1), sumS, math.Inf(-1), 2)
		aux = append(aux, OrthantAuxVars{Col0: c0, Col1: c1, T: t, S: s})
	}
	return aux
}
