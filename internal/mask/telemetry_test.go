package mask

import (
	"math"
	"testing"
)

func TestQuaternionMulIdentity(t *testing.T) {
	q := Quaternion{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}
	if got := q.Mul(Identity()); got != q {
		t.Fatalf("q*1 = %+v, want %+v", got, q)
	}
	if got := Identity().Mul(q); got != q {
		t.Fatalf("1*q = %+v, want %+v", got, q)
	}
}

func TestQuaternionMulComposesRotations(t *testing.T) {
	// Two 90-degree rotations about Y compose to 180 degrees about Y.
	s := math.Sqrt(2) / 2
	y90 := Quaternion{Y: s, W: s}
	got := y90.Mul(y90)
	want := Quaternion{Y: 1}
	if math.Abs(got.X-want.X) > 1e-12 || math.Abs(got.Y-want.Y) > 1e-12 ||
		math.Abs(got.Z-want.Z) > 1e-12 || math.Abs(got.W-want.W) > 1e-12 {
		t.Fatalf("y90*y90 = %+v, want %+v", got, want)
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	var zero Quaternion
	if got := zero.Normalize(); got != Identity() {
		t.Fatalf("zero quaternion normalized to %+v", got)
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	in := testSnapshot()
	cp := in.Clone()

	cp.Voice.Frequency[0] = -1
	cp.Gestures[0].Joints["wrist"] = Quaternion{X: 1}
	cp.Animations["blink"] = 99
	cp.Custom["mood"][0] = 'X'

	if in.Voice.Frequency[0] == -1 {
		t.Fatal("clone shares voice buffers")
	}
	if in.Gestures[0].Joints["wrist"] == (Quaternion{X: 1}) {
		t.Fatal("clone shares joint maps")
	}
	if in.Animations["blink"] == 99 {
		t.Fatal("clone shares animation map")
	}
	if in.Custom["mood"][0] == 'X' {
		t.Fatal("clone shares custom payloads")
	}
}
