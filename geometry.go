package so3mip

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrGeometryDegenerate reports an input whose geometry admits no unique
// answer, such as fitting a plane through almost colinear points. Callers
// test for it with errors.Is.
var ErrGeometryDegenerate = errors.New("geometry is degenerate")

func vecAt(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	default:
		panic(fmt.Errorf("axis %d out of range", axis))
	}
}

func vecSet(v r3.Vec, axis int, val float64) r3.Vec {
	switch axis {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	case 2:
		v.Z = val
	default:
		panic(fmt.Errorf("axis %d out of range", axis))
	}
	return v
}

func inFirstOrthant(v r3.Vec) bool {
	return v.X >= 0 && v.Y >= 0 && v.Z >= 0
}

// intercept returns the positive third coordinate putting (x, y, ·) on the
// unit sphere. Panics when x² + y² > 1, which cannot happen for an edge that
// actually crosses the sphere.
func intercept(x, y float64) float64 {
	if x*x+y*y > 1 {
		panic(fmt.Errorf("no intercept exists for (%g, %g)", x, y))
	}
	return math.Sqrt(1 - x*x - y*y)
}

// ComputeBoxEdgesAndSphereIntersection returns every point where an edge of
// the axis-aligned box [bmin, bmax] meets the unit sphere. The box must lie
// in the first orthant with bmax dominating bmin elementwise, and must
// straddle the sphere (|bmin| <= 1 <= |bmax|). When a corner sits exactly on
// the sphere it is the single intersection of its edges, so a box touching
// the sphere only at bmin (or bmax) yields just that corner.
func ComputeBoxEdgesAndSphereIntersection(bmin, bmax r3.Vec) []r3.Vec {
	if !inFirstOrthant(bmin) {
		panic("the box must lie in the first orthant")
	}
	if !(bmax.X > bmin.X && bmax.Y > bmin.Y && bmax.Z > bmin.Z) {
		panic("bmax must dominate bmin elementwise")
	}
	if r3.Norm(bmin) > 1 || r3.Norm(bmax) < 1 {
		panic("the box does not straddle the unit sphere")
	}

	if r3.Norm(bmin) == 1 {
		return []r3.Vec{bmin}
	}
	if r3.Norm(bmax) == 1 {
		return []r3.Vec{bmax}
	}

	// 12 edges, each crossing the sphere at most once in the first orthant.
	pts := make([]r3.Vec, 0, 12)

	// Corners sitting exactly on the sphere.
	for i := 0; i < 8; i++ {
		var corner r3.Vec
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) != 0 {
				corner = vecSet(corner, axis, vecAt(bmin, axis))
			} else {
				corner = vecSet(corner, axis, vecAt(bmax, axis))
			}
		}
		if r3.Norm(corner) == 1 {
			pts = append(pts, corner)
		}
	}

	// Interior edge crossings: one endpoint strictly inside, one strictly
	// outside the sphere.
	for axis := 0; axis < 3; axis++ {
		fixed1 := (axis + 1) % 3
		fixed2 := (axis + 2) % 3
		for _, val1 := range []float64{vecAt(bmin, fixed1), vecAt(bmax, fixed1)} {
			for _, val2 := range []float64{vecAt(bmin, fixed2), vecAt(bmax, fixed2)} {
				var closer r3.Vec
				closer = vecSet(closer, axis, vecAt(bmin, axis))
				closer = vecSet(closer, fixed1, val1)
				closer = vecSet(closer, fixed2, val2)
				farther := vecSet(closer, axis, vecAt(bmax, axis))
				if r3.Norm(closer) < 1 && r3.Norm(farther) > 1 {
					pt := vecSet(closer, axis, intercept(val1, val2))
					pts = append(pts, pt)
				}
			}
		}
	}
	return pts
}

// ComputeTriangleOutwardNormal fits the plane n·x = d through the triangle
// (pt0, pt1, pt2), with n unit length and pointing away from the origin.
// All vertices must lie in the first orthant. Returns ErrGeometryDegenerate
// when the vertices are almost colinear.
func ComputeTriangleOutwardNormal(pt0, pt1, pt2 r3.Vec) (n r3.Vec, d float64, err error) {
	if !inFirstOrthant(pt0) || !inFirstOrthant(pt1) || !inFirstOrthant(pt2) {
		panic("triangle vertices must lie in the first orthant")
	}
	n = r3.Cross(r3.Sub(pt2, pt0), r3.Sub(pt1, pt0))
	nNorm := r3.Norm(n)
	if nNorm < 1e-3 {
		return r3.Vec{}, 0, fmt.Errorf("%w: triangle vertices are almost colinear", ErrGeometryDegenerate)
	}
	n = r3.Scale(1/nNorm, n)
	if n.X+n.Y+n.Z < 0 {
		n = r3.Scale(-1, n)
	}
	d = r3.Dot(pt0, n)
	if !inFirstOrthant(n) {
		panic(fmt.Errorf("outward normal (%g, %g, %g) has mixed signs", n.X, n.Y, n.Z))
	}
	return n, d, nil
}

// AreAllVerticesCoPlanar reports whether all points lie on the plane spanned
// by the first three, within 1e-10, and returns that plane as n·x = d when
// they do. Needs at least three points; forwards ErrGeometryDegenerate when
// the first three are almost colinear.
func AreAllVerticesCoPlanar(pts []r3.Vec) (coplanar bool, n r3.Vec, d float64, err error) {
	if len(pts) < 3 {
		panic(fmt.Errorf("coplanarity needs at least three points, got %d", len(pts)))
	}
	n, d, err = ComputeTriangleOutwardNormal(pts[0], pts[1], pts[2])
	if err != nil {
		return false, r3.Vec{}, 0, err
	}
	for _, pt := range pts[3:] {
		if math.Abs(r3.Dot(n, pt)-d) > 1e-10 {
			return false, r3.Vec{}, 0, nil
		}
	}
	return true, n, d, nil
}

// ComputeHalfSpaceRelaxationForBoxSphereIntersection finds the tightest
// half space n·x >= d containing the intersection region between the unit
// sphere and a first-orthant box, given the region's vertices. Over any arc
// of the region the inner product n·x is minimized at a vertex, so d only
// needs to hold at the vertices. Coplanar vertices give their plane
// directly; otherwise n and d solve
//
//	max d  s.t.  n·ptᵢ >= d, |n| <= 1
//
// through the SLSQP-backed Solve.
func ComputeHalfSpaceRelaxationForBoxSphereIntersection(pts []r3.Vec) (n r3.Vec, d float64, err error) {
	if len(pts) < 3 {
		panic(fmt.Errorf("the half-space fit needs at least three vertices, got %d", len(pts)))
	}
	coplanar, n, d, err := AreAllVerticesCoPlanar(pts)
	if err != nil {
		return r3.Vec{}, 0, err
	}
	if coplanar {
		return n, d, nil
	}

	prog := NewProgram()
	nVar := prog.NewContinuousVariables(3, "n")
	dVar := prog.NewContinuousVariables(1, "d")[0]
	// The optimum is known to satisfy 0 < n, 0 < d < 1; the boxes keep the
	// iterates in that region without excluding it.
	prog.AddBoundingBoxConstraint(0, 1, nVar...)
	prog.AddBoundingBoxConstraint(0, 1, dVar)
	prog.AddLinearCost(Term(dVar, -1))
	for i, pt := range pts {
		above := VarVec3([3]Variable{nVar[0], nVar[1], nVar[2]}).Dot(pt).PlusVar(dVar, -1)
		prog.AddLinearConstraint(fmt.Sprintf("above[%d]", i), above, 0, math.Inf(1))
	}
	prog.AddLorentzConeConstraint("unit_normal",
		Const(1), Term(nVar[0], 1), Term(nVar[1], 1), Term(nVar[2], 1))

	// Warm start at the mean direction of the vertices.
	mean := r3.Vec{}
	for _, pt := range pts {
		mean = r3.Add(mean, pt)
	}
	mean = r3.Unit(mean)
	d0 := math.Inf(1)
	for _, pt := range pts {
		d0 = math.Min(d0, r3.Dot(mean, pt))
	}
	sol, err := prog.Solve([]float64{mean.X, mean.Y, mean.Z, d0})
	if err != nil {
		return r3.Vec{}, 0, fmt.Errorf("half-space fit failed: %s", err)
	}
	n = r3.Vec{X: sol.Value(nVar[0]), Y: sol.Value(nVar[1]), Z: sol.Value(nVar[2])}
	d = sol.Value(dVar)
	if n.X <= 0 || n.Y <= 0 || n.Z <= 0 || d <= 0 || d >= 1 {
		panic(fmt.Errorf("half-space fit left its feasible region: n = (%g, %g, %g), d = %g", n.X, n.Y, n.Z, d))
	}
	return n, d, nil
}

// ComputeInnerFacetsForBoxSphereIntersection returns facets A·x <= b of the
// convex hull of the intersection region's vertices, each row of A a unit
// normal. A triangle through three vertices becomes a facet when every other
// vertex lies on its far side from the origin; since n·x over the region is
// minimized at a vertex, the region then satisfies the facet too. Colinear
// triples define no plane and are skipped. Returns nil matrices when no
// triple qualifies.
func ComputeInnerFacetsForBoxSphereIntersection(pts []r3.Vec) (A *mat.Dense, b []float64) {
	for _, pt := range pts {
		if !inFirstOrthant(pt) {
			panic("all vertices must lie in the first orthant")
		}
	}
	var rows []float64
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				c, d, cerr := ComputeTriangleOutwardNormal(pts[i], pts[j], pts[k])
				if cerr != nil {
					continue
				}
				valid := true
				for l := 0; l < len(pts); l++ {
					if l == i || l == j || l == k {
						continue
					}
					if r3.Dot(c, pts[l]) < d-1e-10 {
						valid = false
						break
					}
				}
				if valid {
					rows = append(rows, -c.X, -c.Y, -c.Z)
					b = append(b, -d)
				}
			}
		}
	}
	if len(b) == 0 {
		return nil, nil
	}
	return mat.NewDense(len(b), 3, rows), b
}
