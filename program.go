package so3mip

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/optimizer/slsqp"
	kitlog "github.com/go-kit/kit/log"
	"gonum.org/v1/gonum/mat"
)

// Program collects decision variables and convex constraints. Mixed-integer
// relaxations are emitted into a Program; an external MILP solver (or the
// SLSQP-backed Solve below, with the binaries pinned by their bounds) then
// searches the model. The zero Program is not usable, call NewProgram.
type Program struct {
	names  []string
	types  []VarType
	lb, ub []float64

	linear []linearConstraint
	cones  []coneConstraint
	lmis   []lmiConstraint
	cost   LinExpr

	logger kitlog.Logger
}

// lb <= expr <= ub, with ±Inf for one-sided constraints.
type linearConstraint struct {
	name   string
	expr   LinExpr
	lb, ub float64
}

// z[0] >= |z[1:]| or, rotated, z[0]*z[1] >= Σ z[2:]² with z[0], z[1] >= 0.
type coneConstraint struct {
	name    string
	z       []LinExpr
	rotated bool
}

// F[0] + Σ x(i)*F[1+i] is positive semidefinite.
type lmiConstraint struct {
	name string
	F    []*mat.SymDense
	vars []Variable
}

// NewProgram returns an empty program. Logging is disabled until SetLogger.
func NewProgram() *Program {
	return &Program{logger: kitlog.NewNopLogger()}
}

// SetLogger routes the program's structured log output, e.g. to a
// kitlog.NewLogfmtLogger. The default discards everything.
func (p *Program) SetLogger(logger kitlog.Logger) {
	p.logger = logger
}

func (p *Program) newVariable(name string, t VarType, lb, ub float64) Variable {
	p.names = append(p.names, name)
	p.types = append(p.types, t)
	p.lb = append(p.lb, lb)
	p.ub = append(p.ub, ub)
	return Variable{idx: len(p.names) - 1}
}

// NewContinuousVariables appends n unbounded continuous variables.
func (p *Program) NewContinuousVariables(n int, name string) []Variable {
	vars := make([]Variable, n)
	for k := 0; k < n; k++ {
		vars[k] = p.newVariable(fmt.Sprintf("%s[%d]", name, k), Continuous, math.Inf(-1), math.Inf(1))
	}
	return vars
}

// NewBinaryVariables appends n binary variables, bounded to [0, 1].
func (p *Program) NewBinaryVariables(n int, name string) []Variable {
	vars := make([]Variable, n)
	for k := 0; k < n; k++ {
		vars[k] = p.newVariable(fmt.Sprintf("%s[%d]", name, k), Binary, 0, 1)
	}
	return vars
}

// NumVariables returns the number of decision variables registered so far.
func (p *Program) NumVariables() int { return len(p.names) }

// VarName returns the name the variable was registered under.
func (p *Program) VarName(v Variable) string { return p.names[v.idx] }

// TypeOf returns the variable's type.
func (p *Program) TypeOf(v Variable) VarType { return p.types[v.idx] }

// VarBounds returns the tightest bounds accumulated for the variable.
func (p *Program) VarBounds(v Variable) (lb, ub float64) {
	return p.lb[v.idx], p.ub[v.idx]
}

// NumLinearConstraints returns the number of registered linear constraints.
// Variable bounds are kept separately and not counted here.
func (p *Program) NumLinearConstraints() int { return len(p.linear) }

// NumConeConstraints returns the number of (rotated) Lorentz cone constraints.
func (p *Program) NumConeConstraints() int { return len(p.cones) }

// NumLMIConstraints returns the number of linear matrix inequalities.
func (p *Program) NumLMIConstraints() int { return len(p.lmis) }

// AddBoundingBoxConstraint tightens the bounds of each listed variable to
// the intersection with [lb, ub]. Panics if a variable's bounds become empty,
// which means the caller asked for contradictory boxes.
func (p *Program) AddBoundingBoxConstraint(lb, ub float64, vars ...Variable) {
	if lb > ub {
		panic(fmt.Errorf("bounding box [%g, %g] is empty", lb, ub))
	}
	for _, v := range vars {
		p.lb[v.idx] = math.Max(p.lb[v.idx], lb)
		p.ub[v.idx] = math.Min(p.ub[v.idx], ub)
		if p.lb[v.idx] > p.ub[v.idx] {
			panic(fmt.Errorf("variable %s has empty bounds [%g, %g]", p.names[v.idx], p.lb[v.idx], p.ub[v.idx]))
		}
	}
}

// AddLinearConstraint registers lb <= expr <= ub. Use ±Inf for one-sided
// constraints.
func (p *Program) AddLinearConstraint(name string, expr LinExpr, lb, ub float64) {
	if lb > ub {
		panic(fmt.Errorf("linear constraint %s has lb %g > ub %g", name, lb, ub))
	}
	if len(expr.terms) == 0 {
		panic(fmt.Errorf("linear constraint %s has no variables", name))
	}
	p.linear = append(p.linear, linearConstraint{name: name, expr: expr, lb: lb, ub: ub})
}

// AddLinearEqualityConstraint registers expr == val.
func (p *Program) AddLinearEqualityConstraint(name string, expr LinExpr, val float64) {
	p.AddLinearConstraint(name, expr, val, val)
}

// AddLorentzConeConstraint registers z[0] >= sqrt(z[1]² + ... + z[m]²).
func (p *Program) AddLorentzConeConstraint(name string, z ...LinExpr) {
	if len(z) < 2 {
		panic("a Lorentz cone needs at least two expressions")
	}
	p.cones = append(p.cones, coneConstraint{name: name, z: z})
}

// AddRotatedLorentzConeConstraint registers z[0]*z[1] >= z[2]² + ... + z[m]²
// with z[0] >= 0 and z[1] >= 0.
func (p *Program) AddRotatedLorentzConeConstraint(name string, z ...LinExpr) {
	if len(z) < 3 {
		panic("a rotated Lorentz cone needs at least three expressions")
	}
	p.cones = append(p.cones, coneConstraint{name: name, z: z, rotated: true})
}

// AddLinearMatrixInequalityConstraint registers
// F[0] + x(0)*F[1] + ... + x(n-1)*F[n] ⪰ 0 over the listed variables.
func (p *Program) AddLinearMatrixInequalityConstraint(name string, F []*mat.SymDense, vars []Variable) {
	if len(F) != len(vars)+1 {
		panic(fmt.Errorf("LMI %s needs %d matrices for %d variables, got %d", name, len(vars)+1, len(vars), len(F)))
	}
	rows := F[0].SymmetricDim()
	for _, Fi := range F[1:] {
		if Fi.SymmetricDim() != rows {
			panic(fmt.Errorf("LMI %s mixes %dx%d and %dx%d matrices", name, rows, rows, Fi.SymmetricDim(), Fi.SymmetricDim()))
		}
	}
	p.lmis = append(p.lmis, lmiConstraint{name: name, F: F, vars: vars})
}

// AddLinearCost adds expr to the objective (minimized by Solve). With no
// cost registered, Solve degenerates into a feasibility search.
func (p *Program) AddLinearCost(expr LinExpr) {
	p.cost = p.cost.Plus(expr)
}

// lmiValue assembles F[0] + Σ x(i)*F[1+i] at the assignment x.
func (c lmiConstraint) lmiValue(x []float64) *mat.SymDense {
	rows := c.F[0].SymmetricDim()
	S := mat.NewSymDense(rows, nil)
	S.CopySym(c.F[0])
	scaled := mat.NewSymDense(rows, nil)
	for i, v := range c.vars {
		scaled.ScaleSym(x[v.idx], c.F[1+i])
		S.AddSym(S, scaled)
	}
	return S
}

// lmiMinEigenvalue returns the smallest eigenvalue of the assembled LMI.
func (c lmiConstraint) lmiMinEigenvalue(x []float64) float64 {
	var eig mat.EigenSym
	if ok := eig.Factorize(c.lmiValue(x), false); !ok {
		panic(fmt.Errorf("eigen decomposition failed for LMI %s", c.name))
	}
	vals := eig.Values(nil)
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// CheckSatisfied reports whether the assignment x satisfies every bound and
// constraint of the program to within tol. Binary variables must sit within
// tol of 0 or 1. The returned error names the first violation found.
func (p *Program) CheckSatisfied(x []float64, tol float64) error {
	if len(x) != len(p.names) {
		return fmt.Errorf("assignment has %d values for %d variables", len(x), len(p.names))
	}
	for i, xi := range x {
		if xi < p.lb[i]-tol || xi > p.ub[i]+tol {
			return fmt.Errorf("%s = %g outside bounds [%g, %g]", p.names[i], xi, p.lb[i], p.ub[i])
		}
		if p.types[i] == Binary && math.Abs(xi-math.Round(xi)) > tol {
			return fmt.Errorf("%s = %g is not integral", p.names[i], xi)
		}
	}
	for _, c := range p.linear {
		val := c.expr.Eval(x)
		if val < c.lb-tol || val > c.ub+tol {
			return fmt.Errorf("linear constraint %s = %g outside [%g, %g]", c.name, val, c.lb, c.ub)
		}
	}
	for _, c := range p.cones {
		z := make([]float64, len(c.z))
		for i, e := range c.z {
			z[i] = e.Eval(x)
		}
		if c.rotated {
			sq := 0.0
			for _, zi := range z[2:] {
				sq += zi * zi
			}
			if z[0] < -tol || z[1] < -tol || z[0]*z[1] < sq-tol {
				return fmt.Errorf("rotated Lorentz cone %s violated: %g * %g < %g", c.name, z[0], z[1], sq)
			}
		} else {
			sq := 0.0
			for _, zi := range z[1:] {
				sq += zi * zi
			}
			if z[0] < math.Sqrt(sq)-tol {
				return fmt.Errorf("Lorentz cone %s violated: %g < %g", c.name, z[0], math.Sqrt(sq))
			}
		}
	}
	for _, c := range p.lmis {
		if min := c.lmiMinEigenvalue(x); min < -tol {
			return fmt.Errorf("LMI %s has eigenvalue %g", c.name, min)
		}
	}
	return nil
}

// Solution holds the optimum found by Solve.
type Solution struct {
	X          []float64
	Cost       float64
	Iterations int
}

// Value returns the solved value of the variable.
func (s *Solution) Value(v Variable) float64 { return s.X[v.idx] }

// Values returns the solved values of the listed variables.
func (s *Solution) Values(vars []Variable) []float64 {
	out := make([]float64, len(vars))
	for i, v := range vars {
		out[i] = s.X[v.idx]
	}
	return out
}

const (
	solveAccuracy = 1e-9
	solveMaxIter  = 500
)

// Solve minimizes the accumulated linear cost subject to the registered
// constraints, using SLSQP. Cone constraints are handled in their smooth
// quadratic form. Binary variables are treated as continuous within their
// bounds, so callers must pin them (AddBoundingBoxConstraint) beforehand if
// integrality matters. Linear matrix inequalities are not supported.
// A nil x0 starts from the midpoint of the bounds.
func (p *Program) Solve(x0 []float64) (*Solution, error) {
	n := len(p.names)
	if n == 0 {
		return nil, errors.New("program has no decision variables")
	}
	if len(p.lmis) > 0 {
		return nil, errors.New("the SLSQP backend cannot handle linear matrix inequalities")
	}
	if x0 == nil {
		x0 = make([]float64, n)
		for i := range x0 {
			x0[i] = midpoint(p.lb[i], p.ub[i])
		}
	} else if len(x0) != n {
		panic(fmt.Errorf("initial guess has %d values for %d variables", len(x0), n))
	}

	bounds := make([]slsqp.Bound, n)
	for i := range bounds {
		bounds[i] = slsqp.Bound{Lower: p.lb[i], Upper: p.ub[i]}
	}

	var eqs, neqs []slsqp.Evaluation
	for _, c := range p.linear {
		if c.lb == c.ub {
			eqs = append(eqs, affineEval(c.expr, -c.lb, 1))
			continue
		}
		if !math.IsInf(c.lb, -1) {
			neqs = append(neqs, affineEval(c.expr, -c.lb, 1)) // expr - lb >= 0
		}
		if !math.IsInf(c.ub, 1) {
			neqs = append(neqs, affineEval(c.expr, -c.ub, -1)) // ub - expr >= 0
		}
	}
	for _, c := range p.cones {
		neqs = append(neqs, c.smoothEvals()...)
	}

	objective := func(x, g []float64) float64 {
		if g != nil {
			for i := range g {
				g[i] = 0
			}
			for i, c := range p.cost.terms {
				g[i] = c
			}
		}
		return p.cost.Eval(x)
	}

	problem := slsqp.Problem{
		N:       n,
		Object:  objective,
		EqCons:  eqs,
		NeqCons: neqs,
		Bounds:  bounds,
		Stop: slsqp.Termination{
			Accuracy:      solveAccuracy,
			MaxIterations: solveMaxIter,
		},
	}
	opt, err := problem.New()
	if err != nil {
		return nil, fmt.Errorf("cannot set up SLSQP: %s", err)
	}
	res := opt.Fit(x0, opt.Init())
	if !res.OK {
		return nil, fmt.Errorf("SLSQP did not converge after %d iterations (status %v)", res.NumIter, res.Status)
	}
	return &Solution{X: res.X, Cost: res.F, Iterations: res.NumIter}, nil
}

// affineEval wraps sign*(expr + shift) as an SLSQP evaluation: the value when
// g is nil, the gradient written into g otherwise.
func affineEval(expr LinExpr, shift, sign float64) slsqp.Evaluation {
	return func(x, g []float64) float64 {
		if g != nil {
			for i := range g {
				g[i] = 0
			}
			for i, c := range expr.terms {
				g[i] = sign * c
			}
		}
		return sign * (expr.Eval(x) + shift)
	}
}

// smoothEvals rewrites the cone membership as differentiable inequalities:
// plain cones become z0 >= 0 and z0² - Σ z_i² >= 0, rotated cones become
// z0 >= 0, z1 >= 0 and z0*z1 - Σ z_i² >= 0.
func (c coneConstraint) smoothEvals() []slsqp.Evaluation {
	var out []slsqp.Evaluation
	head := 1
	if c.rotated {
		head = 2
	}
	for k := 0; k < head; k++ {
		out = append(out, affineEval(c.z[k], 0, 1))
	}
	z := c.z
	rotated := c.rotated
	out = append(out, func(x, g []float64) float64 {
		if g != nil {
			for i := range g {
				g[i] = 0
			}
			if rotated {
				z0, z1 := z[0].Eval(x), z[1].Eval(x)
				for i, c := range z[0].terms {
					g[i] += z1 * c
				}
				for i, c := range z[1].terms {
					g[i] += z0 * c
				}
			} else {
				z0 := z[0].Eval(x)
				for i, c := range z[0].terms {
					g[i] += 2 * z0 * c
				}
			}
			for _, zi := range z[head:] {
				v := zi.Eval(x)
				for i, c := range zi.terms {
					g[i] -= 2 * v * c
				}
			}
		}
		var lhs float64
		if rotated {
			lhs = z[0].Eval(x) * z[1].Eval(x)
		} else {
			z0 := z[0].Eval(x)
			lhs = z0 * z0
		}
		for _, zi := range z[head:] {
			v := zi.Eval(x)
			lhs -= v * v
		}
		return lhs
	})
	return out
}

func midpoint(lb, ub float64) float64 {
	switch {
	case math.IsInf(lb, -1) && math.IsInf(ub, 1):
		return 0
	case math.IsInf(lb, -1):
		return math.Min(ub, 0)
	case math.IsInf(ub, 1):
		return math.Max(lb, 0)
	default:
		return 0.5 * (lb + ub)
	}
}
