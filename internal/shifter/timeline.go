// Package shifter fractures encrypted metadata into fragments distributed
// across timelines and reassembles them on demand.
package shifter

import "github.com/project-89/Quantum-Veil/internal/mask"

// Timeline is a named partition class. It routes a fragment to a
// recommended storage backend and suggests a default privacy level; it
// carries no state of its own. Values outside the standard set act as
// custom timelines.
type Timeline string

const (
	Primary   Timeline = "primary"
	Identity  Timeline = "identity"
	Activity  Timeline = "activity"
	Social    Timeline = "social"
	Financial Timeline = "financial"
)

// StandardTimelines lists the built-in partition classes.
func StandardTimelines() []Timeline {
	return []Timeline{Primary, Identity, Activity, Social, Financial}
}

// RecommendedLocation maps a timeline to its storage-location kind.
// Primary data needs the ledger's durability, financial data needs the
// shadow store's privacy; everything else defaults to content addressing.
func (t Timeline) RecommendedLocation() LocationKind {
	switch t {
	case Primary:
		return LocationOnchain
	case Social:
		return LocationPermanent
	case Financial:
		return LocationShadow
	default:
		return LocationContentAddressed
	}
}

// RecommendedLevel suggests a default mask privacy level for data assigned
// to this timeline.
func (t Timeline) RecommendedLevel() mask.PrivacyLevel {
	switch t {
	case Primary:
		return mask.LevelLight
	case Identity:
		return mask.LevelHeavy
	case Financial:
		return mask.LevelComplete
	default:
		return mask.LevelMedium
	}
}

// DefaultWeights is the stock fracture distribution across the standard
// timelines.
func DefaultWeights() map[Timeline]float64 {
	return map[Timeline]float64{
		Primary:   0.4,
		Identity:  0.15,
		Activity:  0.15,
		Social:    0.15,
		Financial: 0.15,
	}
}
