package strategy

import (
	"math"

	"DipSentinel/internal/model"
)

// TierInfo describes how a tier is presented.
type TierInfo struct {
	Label string
	Emoji string
	K     int // standard deviations below the mean
}

// Tiers maps each tier to its display metadata.
var Tiers = map[model.Tier]TierInfo{
	model.TierNormal: {Label: "정상", Emoji: "✅", K: 0},
	model.TierSigma1: {Label: "1σ 하락", Emoji: "⚠️", K: 1},
	model.TierSigma2: {Label: "2σ 하락", Emoji: "🚨", K: 2},
	model.TierSigma3: {Label: "3σ 하락", Emoji: "🔥", K: 3},
}

// Info returns the metadata for t.
func Info(t model.Tier) TierInfo {
	if info, ok := Tiers[t]; ok {
		return info
	}
	return Tiers[model.TierNormal]
}

// Classify returns the most severe tier whose level the change is at or
// below. Sigma3 is checked first so a deep drop is never reported as a
// milder tier.
func Classify(change float64, levels model.SigmaLevels) model.Tier {
	if math.IsNaN(change) {
		return model.TierNormal
	}
	switch {
	case change <= levels.Sigma3:
		return model.TierSigma3
	case change <= levels.Sigma2:
		return model.TierSigma2
	case change <= levels.Sigma1:
		return model.TierSigma1
	default:
		return model.TierNormal
	}
}

// ClassifyExcluding is Classify with the option of ignoring sigma1-only
// breaches.
func ClassifyExcluding(change float64, levels model.SigmaLevels, excludeSigma1 bool) model.Tier {
	t := Classify(change, levels)
	if excludeSigma1 && t == model.TierSigma1 {
		return model.TierNormal
	}
	return t
}

// Level returns the threshold value for a tier, or the mean for TierNormal.
func Level(levels model.SigmaLevels, t model.Tier) float64 {
	switch t {
	case model.TierSigma1:
		return levels.Sigma1
	case model.TierSigma2:
		return levels.Sigma2
	case model.TierSigma3:
		return levels.Sigma3
	}
	return levels.Mean
}
