package so3mip

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// VarType distinguishes continuous from binary decision variables.
type VarType uint8

const (
	// Continuous variables may take any value within their bounds.
	Continuous VarType = iota
	// Binary variables are restricted to {0, 1}.
	Binary
)

func (t VarType) String() string {
	switch t {
	case Continuous:
		return "continuous"
	case Binary:
		return "binary"
	default:
		panic("unknown variable type")
	}
}

// Variable is a handle to a single decision variable of a Program.
// The zero value is the first variable of its program; handles are only
// meaningful for the program which created them.
type Variable struct {
	idx int
}

// LinExpr is an affine expression over decision variables, Σ cᵢ·xᵢ + k.
// The zero value is the constant 0. All methods are value semantics: they
// return a new expression and never mutate their operands.
type LinExpr struct {
	terms map[int]float64
	k     float64
}

// Term returns the single-term expression c·v.
func Term(v Variable, c float64) LinExpr {
	return LinExpr{terms: map[int]float64{v.idx: c}, k: 0}
}

// Const returns the constant expression k.
func Const(k float64) LinExpr {
	return LinExpr{k: k}
}

// Sum returns the sum of the given expressions.
func Sum(es ...LinExpr) LinExpr {
	out := LinExpr{}
	for _, e := range es {
		out = out.Plus(e)
	}
	return out
}

func (e LinExpr) clone() LinExpr {
	terms := make(map[int]float64, len(e.terms))
	for i, c := range e.terms {
		terms[i] = c
	}
	return LinExpr{terms: terms, k: e.k}
}

// Plus returns e + o.
func (e LinExpr) Plus(o LinExpr) LinExpr {
	out := e.clone()
	for i, c := range o.terms {
		out.terms[i] += c
	}
	out.k += o.k
	return out
}

// Minus returns e - o.
func (e LinExpr) Minus(o LinExpr) LinExpr {
	return e.Plus(o.Scale(-1))
}

// PlusVar returns e + c·v.
func (e LinExpr) PlusVar(v Variable, c float64) LinExpr {
	out := e.clone()
	out.terms[v.idx] += c
	return out
}

// PlusConst returns e + k.
func (e LinExpr) PlusConst(k float64) LinExpr {
	out := e.clone()
	out.k += k
	return out
}

// Scale returns c·e.
func (e LinExpr) Scale(c float64) LinExpr {
	out := e.clone()
	for i := range out.terms {
		out.terms[i] *= c
	}
	out.k *= c
	return out
}

// Eval returns the value of the expression at the assignment x, indexed by
// variable. Panics if x is too short for the variables referenced.
func (e LinExpr) Eval(x []float64) float64 {
	val := e.k
	for i, c := range e.terms {
		if i >= len(x) {
			panic(fmt.Errorf("assignment of length %d cannot evaluate variable %d", len(x), i))
		}
		val += c * x[i]
	}
	return val
}

// ExprVec3 is a 3-vector of affine expressions.
type ExprVec3 [3]LinExpr

// VarVec3 returns the expression vector (v₀, v₁, v₂).
func VarVec3(v [3]Variable) ExprVec3 {
	return ExprVec3{Term(v[0], 1), Term(v[1], 1), Term(v[2], 1)}
}

// Dot returns the affine expression n·a for a numeric vector n.
func (a ExprVec3) Dot(n r3.Vec) LinExpr {
	return Sum(a[0].Scale(n.X), a[1].Scale(n.Y), a[2].Scale(n.Z))
}

// Minus returns a - b componentwise.
func (a ExprVec3) Minus(b ExprVec3) ExprVec3 {
	return ExprVec3{a[0].Minus(b[0]), a[1].Minus(b[1]), a[2].Minus(b[2])}
}

// Eval returns the numeric value of the expression vector at the assignment x.
func (a ExprVec3) Eval(x []float64) r3.Vec {
	return r3.Vec{X: a[0].Eval(x), Y: a[1].Eval(x), Z: a[2].Eval(x)}
}

// Cross returns the expression vector n × a for a numeric left operand n.
func Cross(n r3.Vec, a ExprVec3) ExprVec3 {
	return ExprVec3{
		a[2].Scale(n.Y).Minus(a[1].Scale(n.Z)),
		a[0].Scale(n.Z).Minus(a[2].Scale(n.X)),
		a[1].Scale(n.X).Minus(a[0].Scale(n.Y)),
	}
}
