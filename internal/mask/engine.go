package mask

import (
	"errors"
	"fmt"
	"sync"
)

var ErrConfigNotFound = errors.New("mask: config not found")

// Config binds an asset's mask policy to its owner identity.
type Config struct {
	Asset  string `json:"asset"`
	Owner  string `json:"owner"`
	Policy Policy `json:"policy"`
}

// Engine holds per-asset mask configurations and applies them to telemetry.
// The cache is process-lifetime only; callers recreate configs on restart.
type Engine struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

func NewEngine() *Engine {
	return &Engine{configs: make(map[string]*Config)}
}

// CreateConfig registers a default policy for the asset at the given level
// and noise seed, replacing any existing config.
func (e *Engine) CreateConfig(asset, owner string, level PrivacyLevel, seed uint64) Config {
	cfg := &Config{Asset: asset, Owner: owner, Policy: DefaultPolicy(level, seed)}
	e.mu.Lock()
	e.configs[asset] = cfg
	out := cfg.clone()
	e.mu.Unlock()
	return out
}

// SetConfig installs a fully specified config for the asset. The policy is
// deep-copied on the way in so the caller cannot mutate cached state.
func (e *Engine) SetConfig(cfg Config) {
	cfg.Policy = cfg.Policy.Clone()
	e.mu.Lock()
	e.configs[cfg.Asset] = &cfg
	e.mu.Unlock()
}

// Config returns a deep copy of the cached configuration. Readers never
// share policy maps with the cache, so Apply can run without the lock
// while mutators rewrite levels and rules under it.
func (e *Engine) Config(asset string) (Config, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.configs[asset]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	return cfg.clone(), nil
}

func (c *Config) clone() Config {
	out := *c
	out.Policy = c.Policy.Clone()
	return out
}

// SetLevel updates the privacy level for one data type.
func (e *Engine) SetLevel(asset string, dt DataType, level PrivacyLevel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	cfg.Policy.Levels[dt] = level
	return nil
}

// SetRule updates the access rule for one data type.
func (e *Engine) SetRule(asset string, dt DataType, rule AccessRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	cfg.Policy.Rules[dt] = rule
	return nil
}

// AddTrustedAgent lets agent see through every mask on the asset.
func (e *Engine) AddTrustedAgent(asset, agent string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	if !cfg.Policy.isTrusted(agent) {
		cfg.Policy.TrustedAgents = append(cfg.Policy.TrustedAgents, agent)
	}
	return nil
}

func (e *Engine) RemoveTrustedAgent(asset, agent string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, asset)
	}
	kept := cfg.Policy.TrustedAgents[:0]
	for _, a := range cfg.Policy.TrustedAgents {
		if a != agent {
			kept = append(kept, a)
		}
	}
	cfg.Policy.TrustedAgents = kept
	return nil
}

func (e *Engine) IsTrustedAgent(asset, agent string) (bool, error) {
	cfg, err := e.Config(asset)
	if err != nil {
		return false, err
	}
	return cfg.Policy.isTrusted(agent), nil
}

// Apply transforms a snapshot into what viewer is allowed to see. The input
// is never mutated. Two calls with identical config, snapshot, and viewer
// produce identical output: every random draw is keyed off the policy's
// fixed noise seed.
func (e *Engine) Apply(asset string, snap *Snapshot, viewer string) (*Snapshot, error) {
	cfg, err := e.Config(asset)
	if err != nil {
		return nil, err
	}

	// Trusted agents and the owner see through the mask entirely.
	if viewer != "" && (viewer == cfg.Owner || cfg.Policy.isTrusted(viewer)) {
		return snap.Clone(), nil
	}

	out := snap.Clone()
	p := cfg.Policy
	seed := p.NoiseSeed

	e.maskPosition(&out.Position, p, cfg.Owner, viewer, seed)
	e.maskRotation(&out.Rotation, p, cfg.Owner, viewer, seed)
	if out.Voice != nil {
		e.maskVoice(out.Voice, p, cfg.Owner, viewer, seed)
	}
	for i := range out.Gestures {
		e.maskGesture(&out.Gestures[i], p, cfg.Owner, viewer, seed+uint64(i))
	}
	e.maskAnimations(out, p, cfg.Owner, viewer, seed)
	e.maskCustom(out, p, cfg.Owner, viewer)
	return out, nil
}

// hasAccess evaluates the access rule for dt. A missing rule denies.
func hasAccess(p Policy, dt DataType, viewer, owner string) bool {
	rule, ok := p.Rule(dt)
	if !ok {
		return false
	}
	return rule.Permits(viewer, owner)
}

func (e *Engine) maskPosition(pos *Vec3, p Policy, owner, viewer string, seed uint64) {
	if !hasAccess(p, Position, viewer, owner) {
		*pos = randomPosition(seed)
		return
	}
	switch level := p.Level(Position); level {
	case LevelNone:
	case LevelComplete:
		*pos = randomPosition(seed)
	default:
		jitterPosition(pos, level.Intensity(), seed)
	}
}

func (e *Engine) maskRotation(rot *Quaternion, p Policy, owner, viewer string, seed uint64) {
	if !hasAccess(p, Rotation, viewer, owner) {
		*rot = randomQuaternion(seed)
		return
	}
	switch level := p.Level(Rotation); level {
	case LevelNone:
	case LevelComplete:
		*rot = randomQuaternion(seed)
	default:
		jitterRotation(rot, level.Intensity(), seed)
	}
}

func (e *Engine) maskVoice(v *VoiceData, p Policy, owner, viewer string, seed uint64) {
	if !hasAccess(p, Voice, viewer, owner) {
		zeroVoice(v)
		return
	}
	switch level := p.Level(Voice); level {
	case LevelNone:
	case LevelComplete:
		zeroVoice(v)
	default:
		jitterVoice(v, level.Intensity(), seed)
	}
}

func (e *Engine) maskGesture(g *GestureData, p Policy, owner, viewer string, seed uint64) {
	if !hasAccess(p, Gesture, viewer, owner) {
		randomizeGesture(g, seed)
		return
	}
	switch level := p.Level(Gesture); level {
	case LevelNone:
	case LevelComplete:
		randomizeGesture(g, seed)
	default:
		jitterGesture(g, level.Intensity(), seed)
	}
}

// maskAnimations re-randomizes parameter values when the viewer lacks
// access; permitted viewers get them untouched (animation parameters carry
// no proportional-noise transform).
func (e *Engine) maskAnimations(s *Snapshot, p Policy, owner, viewer string, seed uint64) {
	if len(s.Animations) == 0 || hasAccess(p, Animation, viewer, owner) {
		return
	}
	for k := range s.Animations {
		r := noiseRNG(keySeed(seed, k))
		s.Animations[k] = r.Float64()
	}
}

// maskCustom drops opaque custom data entirely when access is denied; there
// is no bounded domain to randomize within.
func (e *Engine) maskCustom(s *Snapshot, p Policy, owner, viewer string) {
	if len(s.Custom) == 0 || hasAccess(p, Custom, viewer, owner) {
		return
	}
	s.Custom = nil
}
