package model

import "strings"

// Direction is a named axis with polarity: a direction key has the form
// "<component>_<positive|negative>" for PCA/latent axes, or a semantic
// alias such as "faster"/"slower", "brighter"/"darker".
type Direction struct {
	Key              string   `json:"directionKey"`
	SampleTracks     []Track  `json:"sampleTracks"`
	DiversityScore   float64  `json:"diversityScore"`
	TrackCount       int      `json:"trackCount"`
	HasOpposite      bool     `json:"hasOpposite"`
	OppositeKey      string   `json:"oppositeDirection,omitempty"`
	OppositeSamples  []Track  `json:"-"`
	IsOutlier        bool     `json:"isOutlier"`
}

// semanticOpposites lists the canonical alias pairs. PCA/latent axis pairs
// are derived mechanically from the "_positive"/"_negative" suffix instead.
var semanticOpposites = map[string]string{
	"faster":  "slower",
	"slower":  "faster",
	"brighter": "darker",
	"darker":  "brighter",
	"denser":  "sparser",
	"sparser": "denser",
	"louder":  "quieter",
	"quieter": "louder",
}

// Opposite returns the canonical opposite key for a direction, and whether
// one is known.
func Opposite(key string) (string, bool) {
	if opp, ok := semanticOpposites[key]; ok {
		return opp, true
	}
	if strings.HasSuffix(key, "_positive") {
		return strings.TrimSuffix(key, "_positive") + "_negative", true
	}
	if strings.HasSuffix(key, "_negative") {
		return strings.TrimSuffix(key, "_negative") + "_positive", true
	}
	return "", false
}

// aliasComponent is the hand-built scoring function backing a semantic
// direction alias: the raw acoustic feature component it rides, and
// which polarity of that component the alias name means.
type aliasComponent struct {
	component string
	positive  bool
}

// aliasComponents maps each semantic direction alias to the raw feature
// component a feature-extraction sidecar is expected to populate. These
// names are the contract between the Feature Index and whatever produces
// its sidecar, not derived from anything in a track's tags.
var aliasComponents = map[string]aliasComponent{
	"faster":   {"tempo", true},
	"slower":   {"tempo", false},
	"brighter": {"centroid", true},
	"darker":   {"centroid", false},
	"denser":   {"density", true},
	"sparser":  {"density", false},
	"louder":   {"loudness", true},
	"quieter":  {"loudness", false},
}

// ComponentOf returns the underlying feature component name for a
// direction key, and whether the key has positive polarity. Semantic
// aliases (faster/slower, ...) resolve through aliasComponents; PCA/latent
// keys resolve mechanically from their "_positive"/"_negative" suffix.
func ComponentOf(key string) (component string, positive bool, ok bool) {
	if alias, found := aliasComponents[key]; found {
		return alias.component, alias.positive, true
	}
	switch {
	case strings.HasSuffix(key, "_positive"):
		return strings.TrimSuffix(key, "_positive"), true, true
	case strings.HasSuffix(key, "_negative"):
		return strings.TrimSuffix(key, "_negative"), false, true
	default:
		return "", false, false
	}
}
