package so3mip

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// machineε is the distance from 1.0 to the next float64. Cells whose
// corner lands within 2machineε of the sphere are treated as touching it
// exactly, so grids whose breakpoints hit the sphere (such as 1/3, 2/3,
// 2/3) classify deterministically.
const machineε = 1.0 / (1 << 52)

// IntervalBreakpoints returns the 2N+1 axis breakpoints φ(k) = k/N - 1,
// k = 0..2N, splitting [-1, 1] into 2N intervals of width 1/N with φ(N) = 0.
func IntervalBreakpoints(numIntervalsPerHalfAxis int) []float64 {
	if numIntervalsPerHalfAxis < 1 {
		panic(fmt.Errorf("need at least one interval per half axis, got %d", numIntervalsPerHalfAxis))
	}
	φ := make([]float64, 2*numIntervalsPerHalfAxis+1)
	for k := range φ {
		φ[k] = envelopeMinValue(k-numIntervalsPerHalfAxis, numIntervalsPerHalfAxis)
	}
	return φ
}

// envelopeMinValue is i/N, exact for the i = 0 and i = N boundaries.
func envelopeMinValue(i, numIntervalsPerHalfAxis int) float64 {
	return float64(i) / float64(numIntervalsPerHalfAxis)
}

// VarMatrix3 is a 3×3 matrix of decision variables, indexed row first.
type VarMatrix3 [3][3]Variable

// Col returns column j.
func (m VarMatrix3) Col(j int) [3]Variable {
	return [3]Variable{m[0][j], m[1][j], m[2][j]}
}

// Row returns row i.
func (m VarMatrix3) Row(i int) [3]Variable {
	return m[i]
}

// T returns the transpose.
func (m VarMatrix3) T() VarMatrix3 {
	var t VarMatrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[j][i] = m[i][j]
		}
	}
	return t
}

// Diagonal returns the main diagonal.
func (m VarMatrix3) Diagonal() [3]Variable {
	return [3]Variable{m[0][0], m[1][1], m[2][2]}
}

// NewRotationMatrixVars appends a 3×3 block of continuous variables to p,
// entrywise bounded to [-1, 1]. Any rotation has trace 1 + 2cos(angle), so
// the trace is additionally bounded to [-1, 3].
func NewRotationMatrixVars(p *Program, name string) VarMatrix3 {
	var R VarMatrix3
	for i := 0; i < 3; i++ {
		row := p.NewContinuousVariables(3, fmt.Sprintf("%s[%d]", name, i))
		p.AddBoundingBoxConstraint(-1, 1, row...)
		for j := 0; j < 3; j++ {
			R[i][j] = row[j]
		}
	}
	diag := R.Diagonal()
	trace := Term(diag[0], 1).PlusVar(diag[1], 1).PlusVar(diag[2], 1)
	p.AddLinearConstraint(name+".trace", trace, -1, 3)
	return R
}

type cellKind uint8

const (
	cellMisses  cellKind = iota // the box stays strictly inside or outside the sphere
	cellTouches                 // the box meets the sphere at a single corner
	cellCrosses                 // the box and the sphere surface share a 2D region
)

// cellGeometry caches everything the per-octant constraint emission needs
// about one positive-octant grid cell.
type cellGeometry struct {
	kind cellKind

	// cellTouches: the unique intersection, unit length.
	point r3.Vec

	// cellCrosses: tightest half space normal·x >= d over the
	// intersection, the inner facets A·x <= b, and the sine terms of
	// θ = acos(d), the largest angle between normal and a point of the
	// intersection.
	normal   r3.Vec
	d        float64
	A        *mat.Dense
	b        []float64
	sinθ     float64
	sinHalfθ float64
}

// envelopeBuilder memoizes cell geometry across the six per-vector passes,
// which all walk the same N³ positive-octant cells.
type envelopeBuilder struct {
	p     *Program
	n     int // intervals per half axis
	φ     []float64
	codes [][]int
	cells map[[3]int]*cellGeometry
}

func (eb *envelopeBuilder) cellAt(xi, yi, zi int) (*cellGeometry, error) {
	key := [3]int{xi, yi, zi}
	if cg, ok := eb.cells[key]; ok {
		return cg, nil
	}
	bmin := r3.Vec{
		X: envelopeMinValue(xi, eb.n),
		Y: envelopeMinValue(yi, eb.n),
		Z: envelopeMinValue(zi, eb.n),
	}
	bmax := r3.Vec{
		X: envelopeMinValue(xi+1, eb.n),
		Y: envelopeMinValue(yi+1, eb.n),
		Z: envelopeMinValue(zi+1, eb.n),
	}
	bminNorm := r3.Norm(bmin)
	bmaxNorm := r3.Norm(bmax)
	cg := &cellGeometry{}
	switch {
	case !(bminNorm <= 1+2*machineε && bmaxNorm >= 1-2*machineε):
		cg.kind = cellMisses
	case math.Abs(bminNorm-1) < 2*machineε || math.Abs(bmaxNorm-1) < 2*machineε:
		// The near corner on the sphere means the rest of the box is
		// outside it, and the far corner on the sphere means the rest is
		// inside. Either way a single point remains.
		cg.kind = cellTouches
		if math.Abs(bminNorm-1) < 2*machineε {
			cg.point = r3.Scale(1/bminNorm, bmin)
		} else {
			cg.point = r3.Scale(1/bmaxNorm, bmax)
		}
	default:
		cg.kind = cellCrosses
		pts := ComputeBoxEdgesAndSphereIntersection(bmin, bmax)
		if len(pts) < 3 {
			panic(fmt.Errorf("cell [%d %d %d] crosses the sphere with only %d boundary points", xi, yi, zi, len(pts)))
		}
		n, d, err := ComputeHalfSpaceRelaxationForBoxSphereIntersection(pts)
		if err != nil {
			return nil, fmt.Errorf("cell [%d %d %d]: %w", xi, yi, zi, err)
		}
		cg.normal, cg.d = n, d
		θ := math.Acos(d)
		cg.sinθ = math.Sin(θ)
		cg.sinHalfθ = math.Sin(θ / 2)
		cg.A, cg.b = ComputeInnerFacetsForBoxSphereIntersection(pts)
	}
	eb.cells[key] = cg
	return cg, nil
}

// addMcCormickVectorConstraints ties the unit vector v to its Gray digit
// variables B (per axis, most significant first) and to the companions v1
// and v2 that follow it in a right-handed orthonormal frame. Every
// positive-octant cell is visited under all eight sign octants; the
// activation sum cSum is zero exactly when the digits select that cell and
// octant, and each emitted constraint is released in proportion to cSum
// elsewhere.
func (eb *envelopeBuilder) addMcCormickVectorConstraints(tag string, v [3]Variable, B [3][]Variable, v1, v2 [3]Variable) error {
	vE := VarVec3(v)
	v1E := VarVec3(v1)
	v2E := VarVec3(v2)
	for xi := 0; xi < eb.n; xi++ {
		for yi := 0; yi < eb.n; yi++ {
			for zi := 0; zi < eb.n; zi++ {
				cg, err := eb.cellAt(xi, yi, zi)
				if err != nil {
					return err
				}
				for o := 0; o < 8; o++ {
					bo := BoxOctant{XI: xi, YI: yi, ZI: zi, Octant: o}
					c := bo.ActivationExprs(eb.codes, B, eb.n)
					cSum := Sum(c[0], c[1], c[2])
					cell := fmt.Sprintf("%s.cell[%d][%d][%d].oct[%d]", tag, xi, yi, zi, o)
					switch cg.kind {
					case cellMisses:
						// No unit vector lives here, so the digits must
						// not select the cell.
						eb.p.AddLinearConstraint(cell+".empty", cSum, 1, math.Inf(1))
					case cellTouches:
						eb.addPointConstraints(cell, cg.point, o, cSum, vE, v1E, v2E)
					case cellCrosses:
						eb.addRegionConstraints(cell, cg, o, cSum, vE, v1E, v2E)
					}
				}
			}
		}
	}
	return nil
}

// addPointConstraints handles a cell meeting the sphere at the single unit
// point u. With the cell selected (cSum = 0), v is pinned to the flipped
// u, v1 and v2 are pinned orthogonal to it, and v2 is pinned to u × v1.
func (eb *envelopeBuilder) addPointConstraints(cell string, point r3.Vec, o int, cSum LinExpr, v, v1, v2 ExprVec3) {
	u := FlipVector(point, o)
	for i := 0; i < 3; i++ {
		diff := v[i].PlusConst(-vecAt(u, i))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.pin[%d].above", cell, i),
			diff.Plus(cSum.Scale(2)), 0, math.Inf(1))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.pin[%d].below", cell, i),
			diff.Minus(cSum.Scale(2)), math.Inf(-1), 0)
	}
	for k, w := range [2]ExprVec3{v1, v2} {
		dot := w.Dot(u)
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.dot[%d].above", cell, k+1),
			dot.Plus(cSum), 0, math.Inf(1))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.dot[%d].below", cell, k+1),
			dot.Minus(cSum), math.Inf(-1), 0)
	}
	cross := Cross(u, v1).Minus(v2)
	for i := 0; i < 3; i++ {
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.cross[%d].above", cell, i),
			cross[i].Plus(cSum.Scale(2)), 0, math.Inf(1))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.cross[%d].below", cell, i),
			cross[i].Minus(cSum.Scale(2)), math.Inf(-1), 0)
	}
}

// addRegionConstraints handles a cell sharing a 2D region with the sphere.
// The inner facets keep a selected v inside the flipped region, and the
// half-space normal caps how far v1 and v2 may tilt out of the plane
// orthogonal to v: both stay within sinθ of it, and v2 stays within
// 2sin(θ/2) of normal × v1 elementwise.
func (eb *envelopeBuilder) addRegionConstraints(cell string, cg *cellGeometry, o int, cSum LinExpr, v, v1, v2 ExprVec3) {
	normal := FlipVector(cg.normal, o)
	for fi := 0; fi < len(cg.b); fi++ {
		arow := r3.Vec{X: cg.A.At(fi, 0), Y: cg.A.At(fi, 1), Z: cg.A.At(fi, 2)}
		// A rows point out of the first orthant; pass the negation
		// through FlipVector, which insists on first-orthant input.
		facetA := r3.Scale(-1, FlipVector(r3.Scale(-1, arow), o))
		gate := v.Dot(facetA).PlusConst(-cg.b[fi]).Minus(cSum.Scale(1 - cg.b[fi]))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.facet[%d]", cell, fi),
			gate, math.Inf(-1), 0)
	}
	// Valid for any unit v regardless of the selected cell; the odd
	// octant's band mirrors the even one's, so emit half of them.
	if o%2 == 0 {
		eb.p.AddLinearConstraint(cell+".band", v.Dot(normal), -1, 1)
	}
	for k, w := range [2]ExprVec3{v1, v2} {
		dot := w.Dot(normal)
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.tilt[%d].above", cell, k+1),
			dot.Plus(cSum), -cg.sinθ, math.Inf(1))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.tilt[%d].below", cell, k+1),
			dot.Minus(cSum), math.Inf(-1), cg.sinθ)
	}
	cross := v2.Minus(Cross(normal, v1))
	for i := 0; i < 3; i++ {
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.cross[%d].above", cell, i),
			cross[i].Plus(cSum.Scale(2)), -2*cg.sinHalfθ, math.Inf(1))
		eb.p.AddLinearConstraint(fmt.Sprintf("%s.cross[%d].below", cell, i),
			cross[i].Minus(cSum.Scale(2)), math.Inf(-1), 2*cg.sinHalfθ)
	}
}

// envelopeVars collects every decision variable the envelope emits, for
// code inside the package that assembles full assignments.
type envelopeVars struct {
	B      []VarMatrix3
	λ      [3][3][]Variable
	colAux []OrthantAuxVars
	rowAux []OrthantAuxVars
}

func addRotationMatrixEnvelope(p *Program, R VarMatrix3, numIntervalsPerHalfAxis int, limits RollPitchYawLimits) (*envelopeVars, error) {
	n := numIntervalsPerHalfAxis
	if n < 1 {
		panic(fmt.Errorf("need at least one interval per half axis, got %d", n))
	}
	start := time.Now()
	φ := IntervalBreakpoints(n)
	digits := CeilLog2(2 * n)
	eb := &envelopeBuilder{
		p:     p,
		n:     n,
		φ:     φ,
		codes: ReflectedGrayCodes(digits),
		cells: make(map[[3]int]*cellGeometry),
	}

	vars := &envelopeVars{B: make([]VarMatrix3, digits)}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			name := fmt.Sprintf("lambda[%d][%d]", i, j)
			λ := p.NewContinuousVariables(len(φ), name)
			vars.λ[i][j] = λ
			for k, bit := range AddLogarithmicSOS2Constraint(p, λ, name) {
				vars.B[k][i][j] = bit
			}
			interp := Term(R[i][j], -1)
			for k, φk := range φ {
				interp = interp.PlusVar(λ[k], φk)
			}
			p.AddLinearEqualityConstraint(fmt.Sprintf("R[%d][%d].interp", i, j), interp, 0)
		}
	}

	vars.colAux = AddNotInSameOrOppositeOrthantConstraint(p, vars.B[0], n)
	vars.rowAux = AddNotInSameOrOppositeOrthantConstraint(p, vars.B[0].T(), n)

	AddBoundingBoxConstraintsImpliedByRollPitchYawLimitsToBinary(p, vars.B[0], limits)

	for i := 0; i < 3; i++ {
		AddUnitLengthConstraintWithLogarithmicSOS2(p, φ, vars.λ[0][i], vars.λ[1][i], vars.λ[2][i])
		AddUnitLengthConstraintWithLogarithmicSOS2(p, φ, vars.λ[i][0], vars.λ[i][1], vars.λ[i][2])
	}

	for i := 0; i < 3; i++ {
		var colBits, rowBits [3][]Variable
		for j := 0; j < 3; j++ {
			colBits[j] = make([]Variable, digits)
			rowBits[j] = make([]Variable, digits)
			for k := 0; k < digits; k++ {
				colBits[j][k] = vars.B[k][j][i]
				rowBits[j][k] = vars.B[k][i][j]
			}
		}
		if err := eb.addMcCormickVectorConstraints(fmt.Sprintf("col[%d]", i),
			R.Col(i), colBits, R.Col((i+1)%3), R.Col((i+2)%3)); err != nil {
			return nil, err
		}
		if err := eb.addMcCormickVectorConstraints(fmt.Sprintf("row[%d]", i),
			R.Row(i), rowBits, R.Row((i+1)%3), R.Row((i+2)%3)); err != nil {
			return nil, err
		}
	}

	p.logger.Log("level", "info", "subsys", "envelope",
		"intervals", n, "digits", digits, "vars", p.NumVariables(),
		"linear", p.NumLinearConstraints(), "cones", p.NumConeConstraints(),
		"Δt", time.Since(start))
	return vars, nil
}

// AddRotationMatrixMcCormickEnvelopeMilpConstraints relaxes the constraint
// "R is a rotation matrix" into mixed-integer linear constraints. Each
// entry of R is interpolated over 2N intervals per axis through a
// logarithmic SOS2 weighting, columns and rows are held to unit length by
// secant cuts, column and row sign patterns are kept out of shared and
// opposite octants, and every cell of the grid gates orthogonality and
// cross-product conditions on the adjacent columns and rows. Every true
// rotation matrix stays feasible, with spurious solutions shrinking as N
// grows.
//
// Returned is one binary 3×3 matrix per Gray digit of the interval choice,
// most significant first; entry (i, j) of the first matrix tracks the sign
// of R(i, j) when N is a power of two, and callers branching on it get the
// tightest mixed-integer search trees in that regime.
func AddRotationMatrixMcCormickEnvelopeMilpConstraints(p *Program, R VarMatrix3, numIntervalsPerHalfAxis int, limits RollPitchYawLimits) ([]VarMatrix3, error) {
	vars, err := addRotationMatrixEnvelope(p, R, numIntervalsPerHalfAxis, limits)
	if err != nil {
		return nil, err
	}
	return vars.B, nil
}
