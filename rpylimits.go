package so3mip

// RollPitchYawLimits is a bit set of promised extrinsic X-Y-Z Euler angle
// ranges for R = Rz(yaw)·Ry(pitch)·Rx(roll). Each promise lets the
// relaxation pin down the sign of a trigonometric factor and therefore of
// whole matrix entries.
type RollPitchYawLimits uint16

const (
	NoLimits RollPitchYawLimits = 0
	// RollNegPI2ToPI2 promises roll ∈ [-π/2, π/2], so cos(roll) >= 0.
	RollNegPI2ToPI2 RollPitchYawLimits = 1 << 1
	// Roll0ToPI promises roll ∈ [0, π], so sin(roll) >= 0.
	Roll0ToPI RollPitchYawLimits = 1 << 2
	// PitchNegPI2ToPI2 promises pitch ∈ [-π/2, π/2], so cos(pitch) >= 0.
	PitchNegPI2ToPI2 RollPitchYawLimits = 1 << 3
	// Pitch0ToPI promises pitch ∈ [0, π], so sin(pitch) >= 0.
	Pitch0ToPI RollPitchYawLimits = 1 << 4
	// YawNegPI2ToPI2 promises yaw ∈ [-π/2, π/2], so cos(yaw) >= 0.
	YawNegPI2ToPI2 RollPitchYawLimits = 1 << 5
	// Yaw0ToPI promises yaw ∈ [0, π], so sin(yaw) >= 0.
	Yaw0ToPI RollPitchYawLimits = 1 << 6
)

func (l RollPitchYawLimits) has(f RollPitchYawLimits) bool {
	return l&f == f
}

// AddBoundingBoxConstraintsImpliedByRollPitchYawLimits tightens entrywise
// bounds on R from the promised angle ranges. With cr = cos(roll),
// sy = sin(yaw) and so on, R reads
//
//	[ cp·cy   cy·sp·sr - cr·sy   sr·sy + cr·cy·sp ]
//	[ cp·sy   cr·cy + sp·sr·sy   cr·sp·sy - cy·sr ]
//	[ -sp     cp·sr              cp·cr            ]
//
// so, for instance, pitch and yaw both in [-π/2, π/2] make R(0, 0) = cp·cy
// a product of two nonnegative factors.
func AddBoundingBoxConstraintsImpliedByRollPitchYawLimits(p *Program, R VarMatrix3, limits RollPitchYawLimits) {
	if limits.has(PitchNegPI2ToPI2) && limits.has(YawNegPI2ToPI2) {
		p.AddBoundingBoxConstraint(0, 1, R[0][0])
	}
	if limits.has(PitchNegPI2ToPI2) && limits.has(Yaw0ToPI) {
		p.AddBoundingBoxConstraint(0, 1, R[1][0])
	}
	if limits.has(Pitch0ToPI) {
		p.AddBoundingBoxConstraint(-1, 0, R[2][0])
	}
	if limits.has(RollNegPI2ToPI2) && limits.has(YawNegPI2ToPI2) &&
		limits.has(Pitch0ToPI) && limits.has(Roll0ToPI) && limits.has(Yaw0ToPI) {
		p.AddBoundingBoxConstraint(0, 1, R[1][1])
	}
	if limits.has(PitchNegPI2ToPI2) && limits.has(Roll0ToPI) {
		p.AddBoundingBoxConstraint(0, 1, R[2][1])
	}
	if limits.has(Roll0ToPI) && limits.has(Yaw0ToPI) && limits.has(RollNegPI2ToPI2) &&
		limits.has(YawNegPI2ToPI2) && limits.has(Pitch0ToPI) {
		p.AddBoundingBoxConstraint(0, 1, R[0][2])
	}
	if limits.has(PitchNegPI2ToPI2) && limits.has(RollNegPI2ToPI2) {
		p.AddBoundingBoxConstraint(0, 1, R[2][2])
	}
}

// AddBoundingBoxConstraintsImpliedByRollPitchYawLimitsToBinary pins the
// sign binaries implied by the promised angle ranges: wherever the limits
// force R(i, j) >= 0 the matching binary is fixed to 1, and B(2, 0) is
// fixed to 0 where they force R(2, 0) <= 0. B0 must be the most
// significant digit matrix, whose entries track the signs of R.
func AddBoundingBoxConstraintsImpliedByRollPitchYawLimitsToBinary(p *Program, B0 VarMatrix3, limits RollPitchYawLimits) {
	if limits.has(PitchNegPI2ToPI2) && limits.has(YawNegPI2ToPI2) {
		p.AddBoundingBoxConstraint(1, 1, B0[0][0])
	}
	if limits.has(PitchNegPI2ToPI2) && limits.has(Yaw0ToPI) {
		p.AddBoundingBoxConstraint(1, 1, B0[1][0])
	}
	if limits.has(Pitch0ToPI) {
		p.AddBoundingBoxConstraint(0, 0, B0[2][0])
	}
	if limits.has(RollNegPI2ToPI2) && limits.has(YawNegPI2ToPI2) &&
		limits.has(Pitch0ToPI) && limits.has(Roll0ToPI) && limits.has(Yaw0ToPI) {
		p.AddBoundingBoxConstraint(1, 1, B0[1][1])
	}
	if limits.has(PitchNegPI2ToPI2) && limits.has(Roll0ToPI) {
		p.AddBoundingBoxConstraint(1, 1, B0[2][1])
	}
	if limits.has(Roll0ToPI) && limits.has(Yaw0ToPI) && limits.has(RollNegPI2ToPI2) &&
		limits.has(YawNegPI2ToPI2) && limits.has(Pitch0ToPI) {
		p.AddBoundingBoxConstraint(1, 1, B0[0][2])
	}
	if limits.has(PitchNegPI2ToPI2) && limits.has(RollNegPI2ToPI2) {
		p.AddBoundingBoxConstraint(1, 1, B0[2][2])
	}
}
