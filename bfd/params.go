package bfd

// Field is one configurable session/profile parameter. Fields are bits so a
// set of explicitly configured fields fits in a mask.
type Field uint16

const (
	FieldDetectMultiplier Field = 1 << iota
	FieldMinTx
	FieldMinRx
	FieldEchoInterval
	FieldAdminDown
	FieldPassive
	FieldEcho
	FieldMinimumTTL
)

const (
	DefaultDetectMultiplier = 3
	DefaultMinTx            = 300000
	DefaultMinRx            = 300000
	DefaultEchoInterval     = 50000
	DefaultMinimumTTL       = 254
)

var fieldNames = map[Field]string{
	FieldDetectMultiplier: "detection-multiplier",
	FieldMinTx:            "desired-transmission-interval",
	FieldMinRx:            "required-receive-interval",
	FieldEchoInterval:     "desired-echo-transmission-interval",
	FieldAdminDown:        "administrative-down",
	FieldPassive:          "passive-mode",
	FieldEcho:             "echo-mode",
	FieldMinimumTTL:       "minimum-ttl",
}

func (f Field) String() string {
	if n, ok := fieldNames[f]; ok {
		return n
	}
	return "unknown"
}

// Params are the timer and mode parameters shared by sessions and profiles.
// Intervals are in microseconds.
type Params struct {
	DetectMultiplier uint8
	MinTx            uint32
	MinRx            uint32
	EchoInterval     uint32
	AdminDown        bool
	Passive          bool
	Echo             bool
	MinimumTTL       uint8
}

func DefaultParams() Params {
	return Params{
		DetectMultiplier: DefaultDetectMultiplier,
		MinTx:            DefaultMinTx,
		MinRx:            DefaultMinRx,
		EchoInterval:     DefaultEchoInterval,
		MinimumTTL:       DefaultMinimumTTL,
	}
}

// Value returns the field as an integer, booleans are 0 or 1.
func (p *Params) Value(f Field) uint32 {
	switch f {
	case FieldDetectMultiplier:
		return uint32(p.DetectMultiplier)
	case FieldMinTx:
		return p.MinTx
	case FieldMinRx:
		return p.MinRx
	case FieldEchoInterval:
		return p.EchoInterval
	case FieldAdminDown:
		return b2u(p.AdminDown)
	case FieldPassive:
		return b2u(p.Passive)
	case FieldEcho:
		return b2u(p.Echo)
	case FieldMinimumTTL:
		return uint32(p.MinimumTTL)
	}
	return 0
}

// SetValue sets the field and reports whether it changed.
func (p *Params) SetValue(f Field, v uint32) bool {
	if p.Value(f) == v {
		return false
	}
	switch f {
	case FieldDetectMultiplier:
		p.DetectMultiplier = uint8(v)
	case FieldMinTx:
		p.MinTx = v
	case FieldMinRx:
		p.MinRx = v
	case FieldEchoInterval:
		p.EchoInterval = v
	case FieldAdminDown:
		p.AdminDown = v != 0
	case FieldPassive:
		p.Passive = v != 0
	case FieldEcho:
		p.Echo = v != 0
	case FieldMinimumTTL:
		p.MinimumTTL = uint8(v)
	default:
		return false
	}
	return true
}

// overlay copies the fields in mask from src.
func (p *Params) overlay(src *Params, mask Field) {
	for f := FieldDetectMultiplier; f <= FieldMinimumTTL; f <<= 1 {
		if mask&f != 0 {
			p.SetValue(f, src.Value(f))
		}
	}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
