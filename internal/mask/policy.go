// Package mask applies viewer-aware obfuscation to telemetry snapshots.
package mask

import (
	"fmt"
	"time"
)

// DataType classifies the telemetry fields a policy can gate.
type DataType string

const (
	Position    DataType = "position"
	Rotation    DataType = "rotation"
	Voice       DataType = "voice"
	Gesture     DataType = "gesture"
	Animation   DataType = "animation"
	Interaction DataType = "interaction"
	Custom      DataType = "custom"
)

// StandardDataTypes lists every built-in data type, in policy-default order.
func StandardDataTypes() []DataType {
	return []DataType{Position, Rotation, Voice, Gesture, Animation, Interaction, Custom}
}

// PrivacyLevel is an ordinal obfuscation setting. Light through Heavy add
// proportional noise; Complete discards the real value entirely.
type PrivacyLevel int

const (
	LevelNone PrivacyLevel = iota
	LevelLight
	LevelMedium
	LevelHeavy
	LevelComplete
)

// Intensity returns the additive-noise scale for the level. Complete does
// not use proportional noise; its intensity is only meaningful as an upper
// bound.
func (l PrivacyLevel) Intensity() float64 {
	switch l {
	case LevelLight:
		return 0.1
	case LevelMedium:
		return 0.3
	case LevelHeavy:
		return 0.7
	case LevelComplete:
		return 1.0
	default:
		return 0
	}
}

func (l PrivacyLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLight:
		return "light"
	case LevelMedium:
		return "medium"
	case LevelHeavy:
		return "heavy"
	case LevelComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ParseLevel maps a wire name back to a privacy level.
func ParseLevel(s string) (PrivacyLevel, error) {
	switch s {
	case "none":
		return LevelNone, nil
	case "light":
		return LevelLight, nil
	case "medium":
		return LevelMedium, nil
	case "heavy":
		return LevelHeavy, nil
	case "complete":
		return LevelComplete, nil
	default:
		return 0, fmt.Errorf("mask: unknown privacy level %q", s)
	}
}

// AccessKind selects how an AccessRule is evaluated.
type AccessKind string

const (
	// AccessPublic grants every viewer.
	AccessPublic AccessKind = "public"
	// AccessRestricted grants the owner plus an explicit allow-list.
	AccessRestricted AccessKind = "restricted"
	// AccessOwnerOnly grants the owner alone.
	AccessOwnerOnly AccessKind = "owner_only"
)

// AccessRule gates whether a viewer may see a field at all. It is evaluated
// before any privacy-level noise.
type AccessRule struct {
	Kind    AccessKind `json:"kind"`
	Allowed []string   `json:"allowed,omitempty"`
}

func PublicRule() AccessRule            { return AccessRule{Kind: AccessPublic} }
func OwnerOnlyRule() AccessRule         { return AccessRule{Kind: AccessOwnerOnly} }
func RestrictedRule(a ...string) AccessRule { return AccessRule{Kind: AccessRestricted, Allowed: a} }

// Permits reports whether viewer may see the gated field. The owner always
// passes; an empty viewer id only passes public rules.
func (r AccessRule) Permits(viewer, owner string) bool {
	switch r.Kind {
	case AccessPublic:
		return true
	case AccessRestricted:
		if viewer == "" {
			return false
		}
		if viewer == owner {
			return true
		}
		for _, a := range r.Allowed {
			if a == viewer {
				return true
			}
		}
		return false
	case AccessOwnerOnly:
		return viewer != "" && viewer == owner
	default:
		return false
	}
}

// Policy holds the per-type privacy settings for one asset. NoiseSeed is
// fixed at creation and reused for every mask application, so masking is a
// deterministic transform of (policy, snapshot, viewer).
type Policy struct {
	Levels        map[DataType]PrivacyLevel `json:"levels"`
	Rules         map[DataType]AccessRule   `json:"rules"`
	TrustedAgents []string                  `json:"trusted_agents,omitempty"`
	NoiseSeed     uint64                    `json:"noise_seed"`
	// SyncFactor in [0,1] is reserved for cross-viewer coherence.
	SyncFactor float64 `json:"sync_factor"`
}

// DefaultPolicy builds a policy with every standard data type set to level,
// public access rules, and the given noise seed.
func DefaultPolicy(level PrivacyLevel, seed uint64) Policy {
	p := Policy{
		Levels:     make(map[DataType]PrivacyLevel),
		Rules:      make(map[DataType]AccessRule),
		NoiseSeed:  seed,
		SyncFactor: 0.8,
	}
	for _, dt := range StandardDataTypes() {
		p.Levels[dt] = level
		p.Rules[dt] = PublicRule()
	}
	return p
}

// NewSeed returns a wall-clock noise seed for production policies. Tests
// pass a fixed seed instead.
func NewSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

// Clone deep-copies the policy so cached state never escapes by reference.
func (p Policy) Clone() Policy {
	out := p
	out.Levels = make(map[DataType]PrivacyLevel, len(p.Levels))
	for k, v := range p.Levels {
		out.Levels[k] = v
	}
	out.Rules = make(map[DataType]AccessRule, len(p.Rules))
	for k, v := range p.Rules {
		v.Allowed = append([]string(nil), v.Allowed...)
		out.Rules[k] = v
	}
	out.TrustedAgents = append([]string(nil), p.TrustedAgents...)
	return out
}

// Level returns the configured level for dt, defaulting to LevelNone.
func (p Policy) Level(dt DataType) PrivacyLevel {
	return p.Levels[dt]
}

// Rule returns the configured rule for dt. Absent rules deny access.
func (p Policy) Rule(dt DataType) (AccessRule, bool) {
	r, ok := p.Rules[dt]
	return r, ok
}

func (p Policy) isTrusted(agent string) bool {
	for _, a := range p.TrustedAgents {
		if a == agent {
			return true
		}
	}
	return false
}
