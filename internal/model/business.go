// Package model defines the core data types shared across the pipeline.
package model

import (
	"time"
)

// VerificationStatus represents how far a business record has been verified.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// BusinessRecord is the canonical entity for one real-world business.
// (CountryCode, OrgNumber) is unique; ID is assigned at first insert and
// never changes.
type BusinessRecord struct {
	ID          string `json:"id" db:"id"`
	OrgNumber   string `json:"org_number" db:"org_number"`
	LegalName   string `json:"legal_name" db:"legal_name"`
	CountryCode string `json:"country_code" db:"country_code"`
	Domain      string `json:"domain,omitempty" db:"domain"`

	// RegistryData is owned by registry adapters and overwritten wholesale
	// on every re-fetch.
	RegistryData *RegistryData `json:"registry_data,omitempty" db:"registry_data"`

	// QualityAnalysis is owned by enrichment workers and merged
	// field-by-field, never replaced wholesale.
	QualityAnalysis *QualityAnalysis `json:"quality_analysis,omitempty" db:"quality_analysis"`

	// NewsSignals is append-only, ordered by date.
	NewsSignals []NewsSignal `json:"news_signals,omitempty" db:"news_signals"`

	// Derived fields, recomputed by the trust engine. Never hand-edited.
	TrustScore          int            `json:"trust_score" db:"trust_score"`
	TrustScoreBreakdown map[string]int `json:"trust_score_breakdown,omitempty" db:"trust_score_breakdown"`

	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
	LastVerifiedAt     *time.Time         `json:"last_verified_at,omitempty" db:"last_verified_at"`
}

// RegistryData is a structured snapshot from an official registry source.
type RegistryData struct {
	CompanyStatus  string   `json:"company_status,omitempty"`
	Address        string   `json:"address,omitempty"`
	City           string   `json:"city,omitempty"`
	PostalCode     string   `json:"postal_code,omitempty"`
	IndustryCodes  []string `json:"industry_codes,omitempty"`
	EmployeeCount  int      `json:"employee_count,omitempty"`
	VATRegistered  bool     `json:"vat_registered,omitempty"`
	VATActive      bool     `json:"vat_active,omitempty"`
	RegisteredDate string   `json:"registered_date,omitempty"`
}

// Active reports whether the registry considers the company active.
func (r *RegistryData) Active() bool {
	if r == nil {
		return false
	}
	switch r.CompanyStatus {
	case "Active", "active", "ACTIVE":
		return true
	}
	return false
}

// QualityAnalysis is a structured snapshot of content and AI-derived
// signals for a business website.
type QualityAnalysis struct {
	HasSSL            bool     `json:"has_ssl,omitempty"`
	ProfessionalEmail bool     `json:"professional_email,omitempty"`
	ContactEmail      string   `json:"contact_email,omitempty"`

	// AI-derived fields.
	AISummary      string   `json:"ai_summary,omitempty"`
	AIIndustry     string   `json:"ai_industry,omitempty"`
	AIQualityScore int      `json:"ai_quality_score,omitempty"` // 1-10
	RedFlags       []string `json:"red_flags,omitempty"`

	// Presence signals used by the completeness scoring scheme.
	Description  string   `json:"description,omitempty"`
	LogoURL      string   `json:"logo_url,omitempty"`
	SocialLinks  []string `json:"social_links,omitempty"`
	Sitelinks    []string `json:"sitelinks,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	Translations []string `json:"translations,omitempty"`
	IndexedPages int      `json:"indexed_pages,omitempty"`

	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`
}

// Sentiment labels a news signal.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Value maps a sentiment label to its numeric contribution (+1/0/-1).
func (s Sentiment) Value() float64 {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// NewsSignal is one observation from the news pipeline.
type NewsSignal struct {
	Date        time.Time `json:"date"`
	Sentiment   Sentiment `json:"sentiment"`
	ImpactScore float64   `json:"impact_score"` // 0-10
	Source      string    `json:"source,omitempty"`
}

// CandidateRecord is a raw business observation produced by a source
// adapter, not yet reconciled against existing data.
type CandidateRecord struct {
	OrgNumber    string        `json:"org_number"`
	LegalName    string        `json:"legal_name"`
	CountryCode  string        `json:"country_code"`
	Domain       string        `json:"domain,omitempty"`
	RegistryData *RegistryData `json:"registry_data,omitempty"`
}
