// Package enrich turns raw business records into scored, verified ones:
// it merges enrichment findings, probes websites, runs the AI quality
// analyzer, and implements the queue job handlers that tie the pipeline
// together.
package enrich

import (
	"github.com/veridex-labs/trustpipe/internal/model"
)

// MergeQualityAnalysis folds incoming findings into the existing
// analysis field by field. A zero-valued incoming field never clears a
// prior finding; boolean signals only latch from false to true when the
// incoming snapshot actually observed the site. Returns a new value,
// inputs are not mutated.
func MergeQualityAnalysis(existing, incoming *model.QualityAnalysis) *model.QualityAnalysis {
	if incoming == nil {
		return existing
	}
	if existing == nil {
		out := *incoming
		return &out
	}

	out := *existing

	if incoming.HasSSL {
		out.HasSSL = true
	}
	if incoming.ProfessionalEmail {
		out.ProfessionalEmail = true
	}
	if incoming.ContactEmail != "" {
		out.ContactEmail = incoming.ContactEmail
	}

	if incoming.AISummary != "" {
		out.AISummary = incoming.AISummary
	}
	if incoming.AIIndustry != "" {
		out.AIIndustry = incoming.AIIndustry
	}
	if incoming.AIQualityScore > 0 {
		out.AIQualityScore = incoming.AIQualityScore
	}
	if len(incoming.RedFlags) > 0 {
		out.RedFlags = mergeUnique(existing.RedFlags, incoming.RedFlags)
	}

	if incoming.Description != "" {
		out.Description = incoming.Description
	}
	if incoming.LogoURL != "" {
		out.LogoURL = incoming.LogoURL
	}
	if len(incoming.SocialLinks) > 0 {
		out.SocialLinks = mergeUnique(existing.SocialLinks, incoming.SocialLinks)
	}
	if len(incoming.Sitelinks) > 0 {
		out.Sitelinks = mergeUnique(existing.Sitelinks, incoming.Sitelinks)
	}
	if len(incoming.Categories) > 0 {
		out.Categories = mergeUnique(existing.Categories, incoming.Categories)
	}
	if len(incoming.Translations) > 0 {
		out.Translations = mergeUnique(existing.Translations, incoming.Translations)
	}
	if incoming.IndexedPages > out.IndexedPages {
		out.IndexedPages = incoming.IndexedPages
	}

	if incoming.AnalyzedAt != nil {
		out.AnalyzedAt = incoming.AnalyzedAt
	}

	return &out
}

// mergeUnique appends new values onto existing, preserving order and
// dropping duplicates.
func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	for _, v := range incoming {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
