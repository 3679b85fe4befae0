package domain

// EffectKind distinguishes drifting layers from lightning flashes.
type EffectKind int

const (
	EffectCloud EffectKind = iota
	EffectLightning
)

func (k EffectKind) String() string {
	switch k {
	case EffectCloud:
		return "cloud"
	case EffectLightning:
		return "lightning"
	default:
		return "unknown"
	}
}

// Axis is the direction a sprite's sampling window travels through its
// source image. Content on screen appears to move the opposite way.
type Axis int

const (
	AxisPosX Axis = iota
	AxisPosY
	AxisNegX
	AxisNegY
)

// Unit returns the unit vector of the axis.
func (a Axis) Unit() (dx, dy float64) {
	switch a {
	case AxisPosX:
		return 1, 0
	case AxisPosY:
		return 0, 1
	case AxisNegX:
		return -1, 0
	case AxisNegY:
		return 0, -1
	default:
		return 0, 0
	}
}

func (a Axis) String() string {
	switch a {
	case AxisPosX:
		return "+x"
	case AxisPosY:
		return "+y"
	case AxisNegX:
		return "-x"
	case AxisNegY:
		return "-y"
	default:
		return "none"
	}
}
