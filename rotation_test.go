package so3mip

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// assertRotation checks RᵀR = I and det R = +1.
func assertRotation(t *testing.T, R *mat.Dense) {
	t.Helper()
	var rtr mat.Dense
	rtr.Mul(R.T(), R)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			exp := 0.0
			if i == j {
				exp = 1
			}
			if !scalar.EqualWithinAbs(rtr.At(i, j), exp, 1e-12) {
				t.Fatalf("RᵀR(%d,%d) = %g, expected %g", i, j, rtr.At(i, j), exp)
			}
		}
	}
	if det := mat.Det(R); !scalar.EqualWithinAbs(det, 1, 1e-12) {
		t.Fatalf("det R = %g, expected +1", det)
	}
}

func matsAlmostEqual(a, b mat.Matrix, tol float64) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if !scalar.EqualWithinAbs(a.At(i, j), b.At(i, j), tol) {
				return false
			}
		}
	}
	return true
}

func TestRotXYZ(t *testing.T) {
	x := math.Pi / 3.0
	s, c := math.Sincos(x)
	rx := RotX(x)
	ry := RotY(x)
	rz := RotZ(x)
	// Test items equal to 1.
	if rx.At(0, 0) != ry.At(1, 1) || rx.At(0, 0) != rz.At(2, 2) || rz.At(2, 2) != 1 {
		t.Fatal("expected RotX.At(0, 0) = RotY.At(1, 1) = RotZ.At(2, 2) = 1\n")
	}
	// Test items equal to 0.
	if rx.At(0, 1) != rx.At(0, 2) || rx.At(1, 0) != rx.At(2, 0) || rx.At(0, 1) != 0 {
		t.Fatal("misplaced zeros in RotX\n")
	}
	if ry.At(0, 1) != ry.At(1, 2) || ry.At(1, 0) != ry.At(1, 2) || ry.At(1, 2) != 0 {
		t.Fatal("misplaced zeros in RotY\n")
	}
	if rz.At(2, 0) != rz.At(2, 1) || rz.At(0, 2) != rz.At(1, 2) || rz.At(1, 2) != 0 {
		t.Fatal("misplaced zeros in RotZ\n")
	}
	// Active rotations carry -s above the diagonal for x and z, below for y.
	if rx.At(1, 1) != rx.At(2, 2) || rx.At(2, 2) != c {
		t.Fatal("RotX cosines misplaced\n")
	}
	if rx.At(2, 1) != -rx.At(1, 2) || rx.At(2, 1) != s {
		t.Fatal("RotX sines misplaced\n")
	}
	if ry.At(0, 0) != ry.At(2, 2) || ry.At(2, 2) != c {
		t.Fatal("RotY cosines misplaced\n")
	}
	if ry.At(0, 2) != -ry.At(2, 0) || ry.At(0, 2) != s {
		t.Fatal("RotY sines misplaced\n")
	}
	if rz.At(1, 1) != rz.At(0, 0) || rz.At(0, 0) != c {
		t.Fatal("RotZ cosines misplaced\n")
	}
	if rz.At(1, 0) != -rz.At(0, 1) || rz.At(1, 0) != s {
		t.Fatal("RotZ sines misplaced\n")
	}
	for _, θ := range []float64{0, 0.3, math.Pi / 2, -1.2, math.Pi} {
		assertRotation(t, RotX(θ))
		assertRotation(t, RotY(θ))
		assertRotation(t, RotZ(θ))
	}
}

func TestRPYRotationMatrix(t *testing.T) {
	roll := math.Pi / 17
	pitch := math.Pi / 16
	yaw := math.Pi / 15
	var yx, exp mat.Dense
	yx.Mul(RotY(pitch), RotX(roll))
	exp.Mul(RotZ(yaw), &yx)
	R := RPYRotationMatrix(roll, pitch, yaw)
	assertRotation(t, R)
	if !mat.Equal(R, &exp) {
		t.Logf("\n%+v", mat.Formatted(R))
		t.Logf("\n%+v", mat.Formatted(&exp))
		t.Fatal("RPY does not compose as RotZ·RotY·RotX")
	}
	if !matsAlmostEqual(RPYRotationMatrix(roll, 0, 0), RotX(roll), 1e-15) {
		t.Fatal("a pure roll must reduce to RotX")
	}
	if !matsAlmostEqual(RPYRotationMatrix(0, 0, yaw), RotZ(yaw), 1e-15) {
		t.Fatal("a pure yaw must reduce to RotZ")
	}
}

func TestRotationFromQuaternion(t *testing.T) {
	// A 90° yaw: q = cos(π/4) + sin(π/4)·k.
	q := quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}
	R := RotationFromQuaternion(q)
	assertRotation(t, R)
	if !matsAlmostEqual(R, RotZ(math.Pi/2), 1e-15) {
		t.Fatal("the quaternion for a 90° yaw does not match RotZ(π/2)")
	}
	// The rotation is invariant under quaternion scaling.
	if !matsAlmostEqual(RotationFromQuaternion(quat.Scale(2.5, q)), R, 1e-15) {
		t.Fatal("rotation changed under quaternion scaling")
	}
	// An arbitrary unit quaternion still gives a rotation.
	assertRotation(t, RotationFromQuaternion(quat.Number{Real: 0.5, Imag: -0.5, Jmag: 0.5, Kmag: 0.5}))
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for the zero quaternion")
		}
	}()
	RotationFromQuaternion(quat.Number{})
}
