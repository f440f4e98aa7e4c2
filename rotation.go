package so3mip

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// RotX is the active rotation by θ radians about the x axis.
func RotX(θ float64) *mat.Dense {
	s, c := math.Sincos(θ)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, -s, 0, s, c})
}

// RotY is the active rotation by θ radians about the y axis.
func RotY(θ float64) *mat.Dense {
	s, c := math.Sincos(θ)
	return mat.NewDense(3, 3, []float64{c, 0, s, 0, 1, 0, -s, 0, c})
}

// RotZ is the active rotation by θ radians about the z axis.
func RotZ(θ float64) *mat.Dense {
	s, c := math.Sincos(θ)
	return mat.NewDense(3, 3, []float64{c, -s, 0, s, c, 0, 0, 0, 1})
}

// RPYRotationMatrix builds the rotation RotZ(yaw)·RotY(pitch)·RotX(roll)
// for extrinsic X-Y-Z Euler angles.
func RPYRotationMatrix(roll, pitch, yaw float64) *mat.Dense {
	var py, rpy mat.Dense
	py.Mul(RotY(pitch), RotX(roll))
	rpy.Mul(RotZ(yaw), &py)
	return &rpy
}

// RotationFromQuaternion converts q, not necessarily of unit norm, to the
// rotation matrix it represents. Panics on the zero quaternion.
func RotationFromQuaternion(q quat.Number) *mat.Dense {
	n := q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag
	if n == 0 {
		panic("cannot rotate by the zero quaternion")
	}
	s := 2 / n
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - s*(y*y+z*z), s * (x*y - w*z), s * (x*z + w*y),
		s * (x*y + w*z), 1 - s*(x*x+z*z), s * (y*z - w*x),
		s * (x*z - w*y), s * (y*z + w*x), 1 - s*(x*x+y*y)})
}
