package trust

import (
	"math"
	"time"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// Point ceilings for the signal-weighted scheme.
const (
	registryMax = 40
	qualityMax  = 35
	newsMax     = 25

	// newsNeutral is the baseline when no signal falls inside the
	// trailing window.
	newsNeutral = 12
	newsWindow  = 90 * 24 * time.Hour
)

// Score is one computed trust score with its per-component breakdown.
// Breakdown values always sum to Total.
type Score struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
}

// ComputeSignal scores a record with the signal-weighted scheme:
// registry (0-40) + quality (0-35) + news (0-25). Missing inputs
// degrade to their minimum or neutral contribution; the result is a
// pure function of the record and now.
func ComputeSignal(rec *model.BusinessRecord, w Weights, now time.Time) Score {
	registry := registryScore(rec.RegistryData, w)
	quality := qualityScore(rec.QualityAnalysis)
	news := newsScore(rec.NewsSignals, now)

	total := clamp(registry+quality+news, 0, 100)
	return Score{
		Total: total,
		Breakdown: map[string]int{
			"registry": registry,
			"quality":  quality,
			"news":     news,
		},
	}
}

// registryScore awards fixed points for presence and validity of
// registry fields. No registry data scores 0.
func registryScore(data *model.RegistryData, w Weights) int {
	if data == nil {
		return 0
	}
	score := w.RegistryBase
	if data.Active() {
		score += w.RegistryActive
	}
	if data.VATRegistered && data.VATActive {
		score += w.RegistryVAT
	}
	if len(data.IndustryCodes) > 0 {
		score += w.RegistryIndustry
	}
	if data.EmployeeCount > 0 {
		score += w.RegistryEmployee
	}
	return clamp(score, 0, registryMax)
}

// qualityScore combines content flags (up to 10), the AI quality score
// (2.5 points per step on its 1-10 scale), and a red-flag penalty
// capped at 10.
func qualityScore(qa *model.QualityAnalysis) int {
	if qa == nil {
		return 0
	}

	flags := 0
	if qa.HasSSL {
		flags += 5
	}
	if qa.ProfessionalEmail {
		flags += 5
	}

	ai := 0
	if qa.AIQualityScore > 0 {
		ai = int(math.Round(2.5 * float64(qa.AIQualityScore)))
	}

	score := flags + ai
	if score > qualityMax {
		score = qualityMax
	}

	penalty := 3 * len(qa.RedFlags)
	if penalty > 10 {
		penalty = 10
	}
	score -= penalty

	return clamp(score, 0, qualityMax)
}

// newsScore maps impact-weighted sentiment over the trailing 90 days
// onto [0,25]. No signals in the window is neutral, not zero: absence
// of news is not bad news.
func newsScore(signals []model.NewsSignal, now time.Time) int {
	cutoff := now.Add(-newsWindow)

	var weightSum, weighted float64
	for _, sig := range signals {
		if sig.Date.Before(cutoff) || sig.Date.After(now) {
			continue
		}
		weight := sig.ImpactScore / 10
		if weight <= 0 {
			continue
		}
		weightSum += weight
		weighted += weight * sig.Sentiment.Value()
	}

	if weightSum == 0 {
		return newsNeutral
	}

	normalized := weighted / weightSum // [-1, 1]
	score := int(math.Round(12.5 + 12.5*normalized))
	return clamp(score, 0, newsMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
