package so3mip

import (
	"fmt"
	"testing"
)

// sos2Assignment builds the full program assignment holding weight 1-frac
// at breakpoint interval and frac at interval+1, with the binaries spelling
// the interval's Gray code.
func sos2Assignment(p *Program, λ, y []Variable, interval int, frac float64) []float64 {
	x := make([]float64, p.NumVariables())
	x[λ[interval].idx] = 1 - frac
	x[λ[interval+1].idx] = frac
	codes := ReflectedGrayCodes(len(y))
	for d, bit := range codes[interval] {
		x[y[d].idx] = float64(bit)
	}
	return x
}

func TestLogarithmicSOS2Feasible(t *testing.T) {
	p := NewProgram()
	λ := p.NewContinuousVariables(5, "lambda")
	y := AddLogarithmicSOS2Constraint(p, λ, "lambda")
	if len(y) != 2 {
		t.Fatalf("4 intervals need 2 binaries, got %d", len(y))
	}
	for interval := 0; interval < 4; interval++ {
		for _, frac := range []float64{0, 0.25, 1} {
			x := sos2Assignment(p, λ, y, interval, frac)
			if err := p.CheckSatisfied(x, 1e-9); err != nil {
				t.Fatalf("interval %d, frac %g rejected: %s", interval, frac, err)
			}
		}
	}
}

func TestLogarithmicSOS2RejectsSplitWeight(t *testing.T) {
	p := NewProgram()
	λ := p.NewContinuousVariables(5, "lambda")
	y := AddLogarithmicSOS2Constraint(p, λ, "lambda")
	// Weight on the two outermost breakpoints is not SOS2, whatever the
	// binaries claim.
	for assignment := 0; assignment < 4; assignment++ {
		x := make([]float64, p.NumVariables())
		x[λ[0].idx] = 0.5
		x[λ[4].idx] = 0.5
		x[y[0].idx] = float64(assignment & 1)
		x[y[1].idx] = float64((assignment >> 1) & 1)
		if err := p.CheckSatisfied(x, 1e-9); err == nil {
			t.Fatalf("split weight accepted under binaries %d", assignment)
		}
	}
}

func TestLogarithmicSOS2SpareCode(t *testing.T) {
	// Three intervals use Gray codes 00, 01, 11; the spare code 10 must
	// admit no weighting at all.
	p := NewProgram()
	λ := p.NewContinuousVariables(4, "lambda")
	y := AddLogarithmicSOS2Constraint(p, λ, "lambda")
	for k := 0; k < 4; k++ {
		x := make([]float64, p.NumVariables())
		x[λ[k].idx] = 1
		x[y[0].idx] = 1
		x[y[1].idx] = 0
		if err := p.CheckSatisfied(x, 1e-9); err == nil {
			t.Fatalf("the spare code accepted weight at breakpoint %d", k)
		}
	}
	// The used codes still work.
	for interval := 0; interval < 3; interval++ {
		x := sos2Assignment(p, λ, y, interval, 0.5)
		if err := p.CheckSatisfied(x, 1e-9); err != nil {
			t.Fatalf("interval %d rejected: %s", interval, err)
		}
	}
}

func TestUnitLengthSecant(t *testing.T) {
	p := NewProgram()
	φ := IntervalBreakpoints(2)
	var λ [3][]Variable
	var y [3][]Variable
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("lambda[%d]", i)
		λ[i] = p.NewContinuousVariables(len(φ), name)
		y[i] = AddLogarithmicSOS2Constraint(p, λ[i], name)
	}
	AddUnitLengthConstraintWithLogarithmicSOS2(p, φ, λ[0], λ[1], λ[2])

	assign := func(intervals [3]int, fracs [3]float64) []float64 {
		x := make([]float64, p.NumVariables())
		codes := ReflectedGrayCodes(2)
		for i := 0; i < 3; i++ {
			x[λ[i][intervals[i]].idx] = 1 - fracs[i]
			x[λ[i][intervals[i]+1].idx] = fracs[i]
			for d, bit := range codes[intervals[i]] {
				x[y[i][d].idx] = float64(bit)
			}
		}
		return x
	}

	// (0.6, 0.8, 0) is a unit vector; its secant sum is 1.1 >= 1.
	x := assign([3]int{3, 3, 2}, [3]float64{0.2, 0.6, 0})
	if err := p.CheckSatisfied(x, 1e-9); err != nil {
		t.Fatalf("a unit vector was cut off: %s", err)
	}
	// The origin is strictly inside the sphere and must be cut.
	x = assign([3]int{2, 2, 2}, [3]float64{0, 0, 0})
	if err := p.CheckSatisfied(x, 1e-9); err == nil {
		t.Fatal("the origin survived the unit-length secant")
	}
}

func TestBilinearMcCormickEnvelope(t *testing.T) {
	p := NewProgram()
	φ := IntervalBreakpoints(2)
	xv := p.NewContinuousVariables(1, "x")[0]
	yv := p.NewContinuousVariables(1, "y")[0]
	p.AddBoundingBoxConstraint(-1, 1, xv, yv)
	Bx := p.NewBinaryVariables(2, "bx")
	By := p.NewBinaryVariables(2, "by")
	w := AddBilinearProductMcCormickEnvelope(p, xv, yv, φ, φ, Bx, By, "w")

	codes := ReflectedGrayCodes(2)
	assign := func(xVal, yVal, wVal float64, xInt, yInt int) []float64 {
		x := make([]float64, p.NumVariables())
		x[xv.idx] = xVal
		x[yv.idx] = yVal
		x[w.idx] = wVal
		for d, bit := range codes[xInt] {
			x[Bx[d].idx] = float64(bit)
		}
		for d, bit := range codes[yInt] {
			x[By[d].idx] = float64(bit)
		}
		return x
	}

	// The exact product stays inside the envelope.
	if err := p.CheckSatisfied(assign(0.75, -0.25, 0.75*-0.25, 3, 1), 1e-9); err != nil {
		t.Fatalf("the exact product was cut off: %s", err)
	}
	// Breakpoint corners are met exactly.
	if err := p.CheckSatisfied(assign(0.5, -0.5, -0.25, 3, 1), 1e-9); err != nil {
		t.Fatalf("a corner product was cut off: %s", err)
	}
	// A w far from x·y violates the McCormick bounds of the active cell.
	if err := p.CheckSatisfied(assign(0.75, -0.25, 0.2, 3, 1), 1e-9); err == nil {
		t.Fatal("w = 0.2 for x·y = -0.1875 was accepted")
	}
	// Binaries claiming the wrong interval do not release the cell x sits in.
	if err := p.CheckSatisfied(assign(0.75, -0.25, 0.75*-0.25, 0, 1), 1e-9); err == nil {
		t.Fatal("x = 0.75 under interval 0's code was accepted")
	}
}
