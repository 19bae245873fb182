package trust

import (
	"github.com/veridex-labs/trustpipe/internal/model"
)

// Completeness scheme point awards. Every component is a fixed,
// independent award; there is no interaction between them.
const (
	completenessRegistry  = 40
	completenessPresence  = 5 // per presence check, 6 checks, 30 max
	completenessQuality   = 5 // per quality check, 4 checks, 20 max
	completenessTechnical = 5 // per technical check, 2 checks, 10 max

	longDescriptionChars = 200
	minSocialPlatforms   = 2
	minIndexedPages      = 10
)

// ComputeCompleteness scores a record with the completeness-weighted
// scheme: 40 for registry verification, up to 30 for data presence, up
// to 20 for data quality, up to 10 for technical quality.
func ComputeCompleteness(rec *model.BusinessRecord) Score {
	registry := 0
	if rec.VerificationStatus == model.VerificationVerified && rec.RegistryData != nil {
		registry = completenessRegistry
	}

	qa := rec.QualityAnalysis

	presence := 0
	if qa != nil {
		checks := []bool{
			qa.Description != "",
			qa.LogoURL != "",
			len(qa.SocialLinks) > 0,
			len(qa.Sitelinks) > 0,
			len(qa.Categories) > 0,
			len(qa.Translations) > 0,
		}
		for _, ok := range checks {
			if ok {
				presence += completenessPresence
			}
		}
	}

	quality := 0
	if qa != nil {
		checks := []bool{
			len(qa.Description) > longDescriptionChars,
			qa.ProfessionalEmail,
			len(qa.SocialLinks) >= minSocialPlatforms,
			qa.AIIndustry != "",
		}
		for _, ok := range checks {
			if ok {
				quality += completenessQuality
			}
		}
	}

	technical := 0
	if qa != nil {
		if qa.HasSSL {
			technical += completenessTechnical
		}
		if qa.IndexedPages >= minIndexedPages {
			technical += completenessTechnical
		}
	}

	total := clamp(registry+presence+quality+technical, 0, 100)
	return Score{
		Total: total,
		Breakdown: map[string]int{
			"registry":  registry,
			"presence":  presence,
			"quality":   quality,
			"technical": technical,
		},
	}
}
