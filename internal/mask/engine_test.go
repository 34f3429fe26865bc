package mask

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
)

const testSeed = 0x5eed

func testSnapshot() *Snapshot {
	return &Snapshot{
		Position: Vec3{X: 1.5, Y: 0.2, Z: -3.0},
		Rotation: Quaternion{X: 0, Y: 0.7071067811865476, Z: 0, W: 0.7071067811865476},
		Voice: &VoiceData{
			Frequency: []float64{220, 440, 880},
			Amplitude: []float64{0.5, 0.8, 0.2},
			Pitch:     180,
			Timbre:    0.6,
		},
		Gestures: []GestureData{{
			Name:      "wave",
			Intensity: 0.9,
			Speed:     1.2,
			Joints: map[string]Quaternion{
				"wrist": Identity(),
				"elbow": {X: 0.5, Y: 0.5, Z: 0.5, W: 0.5},
			},
		}},
		Animations: map[string]float64{"blink": 0.3},
		Custom:     map[string]json.RawMessage{"mood": json.RawMessage(`"glitchy"`)},
	}
}

func TestApplyUnknownAsset(t *testing.T) {
	e := NewEngine()
	if _, err := e.Apply("missing", testSnapshot(), "anyone"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestApplyLevelNoneIsIdentity(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelNone, testSeed)
	in := testSnapshot()
	out, err := e.Apply("asset", in, "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatal("LevelNone with public access must be the identity transform")
	}
}

func TestApplyOwnerBypass(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelHeavy, testSeed)
	in := testSnapshot()
	out, err := e.Apply("asset", in, "owner")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatal("owner must bypass masking regardless of level")
	}
}

func TestApplyTrustedAgentBypass(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelComplete, testSeed)
	if err := e.AddTrustedAgent("asset", "friend"); err != nil {
		t.Fatalf("add trusted: %v", err)
	}
	in := testSnapshot()
	out, err := e.Apply("asset", in, "friend")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatal("trusted agent must bypass masking")
	}
	if err := e.RemoveTrustedAgent("asset", "friend"); err != nil {
		t.Fatalf("remove trusted: %v", err)
	}
	out2, err := e.Apply("asset", in, "friend")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if reflect.DeepEqual(in, out2) {
		t.Fatal("removed agent still sees through the mask")
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelHeavy, testSeed)
	in := testSnapshot()
	want := testSnapshot()
	if _, err := e.Apply("asset", in, "stranger"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(in, want) {
		t.Fatal("Apply mutated its input snapshot")
	}
}

func TestApplyDeterministic(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelMedium, testSeed)
	a, err := e.Apply("asset", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	b, err := e.Apply("asset", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two applications with identical inputs differ")
	}
}

func TestApplyNoiseChangesData(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelHeavy, testSeed)
	in := testSnapshot()
	out, err := e.Apply("asset", in, "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Position == in.Position {
		t.Fatal("heavy level left position untouched")
	}
	if out.Rotation == in.Rotation {
		t.Fatal("heavy level left rotation untouched")
	}
}

func TestRotationStaysUnit(t *testing.T) {
	e := NewEngine()
	for _, level := range []PrivacyLevel{LevelLight, LevelMedium, LevelHeavy, LevelComplete} {
		e.CreateConfig("asset", "owner", level, testSeed)
		out, err := e.Apply("asset", testSnapshot(), "stranger")
		if err != nil {
			t.Fatalf("apply at %v: %v", level, err)
		}
		if d := math.Abs(out.Rotation.Norm() - 1); d > 1e-9 {
			t.Fatalf("level %v: rotation norm off by %g", level, d)
		}
		for _, g := range out.Gestures {
			for name, q := range g.Joints {
				if d := math.Abs(q.Norm() - 1); d > 1e-9 {
					t.Fatalf("level %v: joint %s norm off by %g", level, name, d)
				}
			}
		}
	}
}

func TestVoiceClamping(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelHeavy, testSeed)
	in := testSnapshot()
	in.Voice.Timbre = 0.99
	in.Voice.Pitch = 1
	out, err := e.Apply("asset", in, "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Voice.Timbre < 0 || out.Voice.Timbre > 1 {
		t.Fatalf("timbre out of range: %v", out.Voice.Timbre)
	}
	if out.Voice.Pitch < 0 {
		t.Fatalf("negative pitch: %v", out.Voice.Pitch)
	}
	for _, f := range out.Voice.Frequency {
		if f < 0 {
			t.Fatalf("negative frequency: %v", f)
		}
	}
	for _, a := range out.Voice.Amplitude {
		if a < 0 {
			t.Fatalf("negative amplitude: %v", a)
		}
	}
}

func TestGestureClamping(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelHeavy, testSeed)
	out, err := e.Apply("asset", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, g := range out.Gestures {
		if g.Intensity < 0 || g.Intensity > 1 {
			t.Fatalf("intensity out of range: %v", g.Intensity)
		}
		if g.Speed <= 0 {
			t.Fatalf("non-positive speed: %v", g.Speed)
		}
	}
}

func TestCompleteEqualsNoAccess(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("a1", "owner", LevelComplete, testSeed)

	e.CreateConfig("a2", "owner", LevelNone, testSeed)
	for _, dt := range StandardDataTypes() {
		if err := e.SetRule("a2", dt, OwnerOnlyRule()); err != nil {
			t.Fatalf("set rule: %v", err)
		}
	}

	complete, err := e.Apply("a1", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply complete: %v", err)
	}
	denied, err := e.Apply("a2", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply denied: %v", err)
	}
	if complete.Position != denied.Position || complete.Rotation != denied.Rotation {
		t.Fatal("Complete level and access denial should randomize identically")
	}
}

func TestRestrictedRule(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelNone, testSeed)
	if err := e.SetRule("asset", Position, RestrictedRule("vip")); err != nil {
		t.Fatalf("set rule: %v", err)
	}
	in := testSnapshot()

	vip, err := e.Apply("asset", in, "vip")
	if err != nil {
		t.Fatalf("apply vip: %v", err)
	}
	if vip.Position != in.Position {
		t.Fatal("allow-listed viewer should see the real position")
	}

	stranger, err := e.Apply("asset", in, "stranger")
	if err != nil {
		t.Fatalf("apply stranger: %v", err)
	}
	if stranger.Position == in.Position {
		t.Fatal("stranger should get a randomized position")
	}
	if stranger.Voice == nil || stranger.Voice.Pitch != in.Voice.Pitch {
		t.Fatal("only the restricted field should be replaced")
	}
}

func TestDeniedVoiceIsZeroed(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelNone, testSeed)
	if err := e.SetRule("asset", Voice, OwnerOnlyRule()); err != nil {
		t.Fatalf("set rule: %v", err)
	}
	out, err := e.Apply("asset", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Voice.Pitch != 0 || out.Voice.Timbre != 0 {
		t.Fatal("denied voice should be zeroed")
	}
	for _, f := range out.Voice.Frequency {
		if f != 0 {
			t.Fatal("denied voice frequencies should be zeroed")
		}
	}
}

func TestDeniedCustomDropped(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelNone, testSeed)
	if err := e.SetRule("asset", Custom, OwnerOnlyRule()); err != nil {
		t.Fatalf("set rule: %v", err)
	}
	out, err := e.Apply("asset", testSnapshot(), "stranger")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Custom != nil {
		t.Fatal("denied custom data should be dropped")
	}
}

func TestConfigCopyIsolated(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelMedium, testSeed)

	got, err := e.Config("asset")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	got.Policy.Levels[Position] = LevelComplete
	got.Policy.Rules[Position] = OwnerOnlyRule()
	got.Policy.TrustedAgents = append(got.Policy.TrustedAgents, "intruder")

	cached, err := e.Config("asset")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cached.Policy.Level(Position) != LevelMedium {
		t.Fatal("mutating a returned config changed the cached level")
	}
	if rule, _ := cached.Policy.Rule(Position); rule.Kind != AccessPublic {
		t.Fatal("mutating a returned config changed the cached rule")
	}
	if trusted, _ := e.IsTrustedAgent("asset", "intruder"); trusted {
		t.Fatal("mutating a returned config changed the trusted agents")
	}
}

func TestConcurrentApplyAndMutate(t *testing.T) {
	e := NewEngine()
	e.CreateConfig("asset", "owner", LevelMedium, testSeed)
	snap := testSnapshot()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := e.Apply("asset", snap, "stranger"); err != nil {
					t.Errorf("apply: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := e.SetLevel("asset", Position, PrivacyLevel(i%5)); err != nil {
				t.Errorf("set level: %v", err)
				return
			}
			if err := e.SetRule("asset", Voice, RestrictedRule("agent")); err != nil {
				t.Errorf("set rule: %v", err)
				return
			}
			if err := e.AddTrustedAgent("asset", "agent"); err != nil {
				t.Errorf("add agent: %v", err)
				return
			}
			if err := e.RemoveTrustedAgent("asset", "agent"); err != nil {
				t.Errorf("remove agent: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
