package mask

import (
	"encoding/json"
	"math"
)

// Vec3 is a position in 3D space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion represents a 3D rotation. It must stay unit-length to be a
// valid rotation; every transform in this package renormalizes.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion { return Quaternion{W: 1} }

// Mul returns the Hamilton product q*o (apply o, then q).
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Norm returns the Euclidean length of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalize scales q to unit length. A degenerate zero quaternion becomes
// the identity rather than NaN.
func (q Quaternion) Normalize() Quaternion {
	n := q.Norm()
	if n == 0 {
		return Identity()
	}
	return Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// VoiceData carries a spectral summary of live voice audio.
type VoiceData struct {
	Frequency []float64 `json:"frequency"`
	Amplitude []float64 `json:"amplitude"`
	Pitch     float64   `json:"pitch"`
	Timbre    float64   `json:"timbre"` // normalized [0,1]
}

// GestureData is one named gesture with per-joint rotations.
type GestureData struct {
	Name      string                `json:"name"`
	Intensity float64               `json:"intensity"` // [0,1]
	Speed     float64               `json:"speed"`     // positive
	Joints    map[string]Quaternion `json:"joints,omitempty"`
}

// Snapshot is one structured telemetry frame for an asset.
type Snapshot struct {
	Position   Vec3                       `json:"position"`
	Rotation   Quaternion                 `json:"rotation"`
	Voice      *VoiceData                 `json:"voice,omitempty"`
	Gestures   []GestureData              `json:"gestures,omitempty"`
	Animations map[string]float64         `json:"animations,omitempty"`
	Custom     map[string]json.RawMessage `json:"custom,omitempty"`
}

// Clone deep-copies the snapshot so masking never mutates the caller's data.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Position: s.Position,
		Rotation: s.Rotation,
	}
	if s.Voice != nil {
		v := &VoiceData{
			Frequency: append([]float64(nil), s.Voice.Frequency...),
			Amplitude: append([]float64(nil), s.Voice.Amplitude...),
			Pitch:     s.Voice.Pitch,
			Timbre:    s.Voice.Timbre,
		}
		out.Voice = v
	}
	if len(s.Gestures) > 0 {
		out.Gestures = make([]GestureData, len(s.Gestures))
		for i, g := range s.Gestures {
			cp := g
			if g.Joints != nil {
				cp.Joints = make(map[string]Quaternion, len(g.Joints))
				for name, q := range g.Joints {
					cp.Joints[name] = q
				}
			}
			out.Gestures[i] = cp
		}
	}
	if s.Animations != nil {
		out.Animations = make(map[string]float64, len(s.Animations))
		for k, v := range s.Animations {
			out.Animations[k] = v
		}
	}
	if s.Custom != nil {
		out.Custom = make(map[string]json.RawMessage, len(s.Custom))
		for k, v := range s.Custom {
			out.Custom[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}
