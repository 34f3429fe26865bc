package mask

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// Noise magnitudes per field family. Position jitter is in world units,
// voice jitter in Hz; intensities from PrivacyLevel scale them.
const (
	positionScale  = 10.0
	frequencyScale = 100.0
	pitchScale     = 50.0
	minSpeed       = 0.1
)

func noiseRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}

// symmetric returns a draw uniform in [-1, 1).
func symmetric(r *rand.Rand) float64 { return r.Float64()*2 - 1 }

// jointSeed derives a per-joint seed from the policy seed and the joint
// name, so joint noise is independent but still reproducible.
func jointSeed(seed uint64, joint string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(joint))
	return seed ^ h.Sum64()
}

// keySeed derives a per-map-key seed; used so map iteration order cannot
// influence randomized output.
func keySeed(seed uint64, key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return seed + h.Sum64()
}

func jitterPosition(p *Vec3, intensity float64, seed uint64) {
	r := noiseRNG(seed)
	p.X += symmetric(r) * intensity * positionScale
	p.Y += symmetric(r) * intensity * positionScale
	p.Z += symmetric(r) * intensity * positionScale
}

// jitterRotation composes the rotation with a small random-axis rotation of
// angle proportional to intensity, then renormalizes. Proper quaternion
// composition, not per-component addition.
func jitterRotation(q *Quaternion, intensity float64, seed uint64) {
	r := noiseRNG(seed)

	angle := intensity * math.Pi * r.Float64()
	axis := Vec3{X: symmetric(r), Y: symmetric(r), Z: symmetric(r)}
	mag := math.Sqrt(axis.X*axis.X + axis.Y*axis.Y + axis.Z*axis.Z)
	if mag == 0 {
		axis = Vec3{X: 1}
		mag = 1
	}

	sin, cos := math.Sincos(angle / 2)
	noise := Quaternion{
		X: axis.X / mag * sin,
		Y: axis.Y / mag * sin,
		Z: axis.Z / mag * sin,
		W: cos,
	}
	*q = q.Mul(noise).Normalize()
}

func jitterVoice(v *VoiceData, intensity float64, seed uint64) {
	r := noiseRNG(seed)
	for i := range v.Frequency {
		v.Frequency[i] = math.Max(0, v.Frequency[i]+symmetric(r)*intensity*frequencyScale)
	}
	for i := range v.Amplitude {
		v.Amplitude[i] = math.Max(0, v.Amplitude[i]+symmetric(r)*intensity)
	}
	v.Pitch = math.Max(0, v.Pitch+symmetric(r)*intensity*pitchScale)
	v.Timbre = clamp01(v.Timbre + symmetric(r)*intensity)
}

// jitterGesture perturbs intensity and speed, then applies rotation noise at
// half intensity to every joint under a per-joint seed.
func jitterGesture(g *GestureData, intensity float64, seed uint64) {
	r := noiseRNG(seed)
	g.Intensity = clamp01(g.Intensity + symmetric(r)*intensity)
	g.Speed = math.Max(minSpeed, g.Speed+symmetric(r)*intensity*g.Speed)
	for name, q := range g.Joints {
		jitterRotation(&q, intensity*0.5, jointSeed(seed, name))
		g.Joints[name] = q
	}
}

// randomPosition replaces a position with an unconstrained draw over a wide
// world-space range.
func randomPosition(seed uint64) Vec3 {
	r := noiseRNG(seed)
	return Vec3{
		X: symmetric(r) * 100,
		Y: symmetric(r) * 100,
		Z: symmetric(r) * 100,
	}
}

// randomQuaternion draws a random unit quaternion.
func randomQuaternion(seed uint64) Quaternion {
	r := noiseRNG(seed)
	return Quaternion{
		X: symmetric(r),
		Y: symmetric(r),
		Z: symmetric(r),
		W: symmetric(r),
	}.Normalize()
}

// zeroVoice blanks all voice content while keeping the sample shape.
func zeroVoice(v *VoiceData) {
	for i := range v.Frequency {
		v.Frequency[i] = 0
	}
	for i := range v.Amplitude {
		v.Amplitude[i] = 0
	}
	v.Pitch = 0
	v.Timbre = 0
}

// randomizeGesture discards the real intensity and speed.
func randomizeGesture(g *GestureData, seed uint64) {
	r := noiseRNG(seed)
	g.Intensity = r.Float64()
	g.Speed = r.Float64() * 2
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
