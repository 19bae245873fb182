package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridex-labs/trustpipe/internal/model"
)

func TestComputeSignal_EmptyRecordGetsNeutralNews(t *testing.T) {
	rec := &model.BusinessRecord{ID: "x"}

	score := ComputeSignal(rec, DefaultWeights(), time.Now())

	assert.Equal(t, 12, score.Total)
	assert.Equal(t, 0, score.Breakdown["registry"])
	assert.Equal(t, 0, score.Breakdown["quality"])
	assert.Equal(t, 12, score.Breakdown["news"])
}

func TestComputeSignal_BreakdownSumsToTotal(t *testing.T) {
	now := time.Now()
	rec := &model.BusinessRecord{
		ID: "x",
		RegistryData: &model.RegistryData{
			CompanyStatus: "Active",
			VATRegistered: true,
			VATActive:     true,
			IndustryCodes: []string{"62.010"},
			EmployeeCount: 12,
		},
		QualityAnalysis: &model.QualityAnalysis{
			HasSSL:            true,
			ProfessionalEmail: true,
			AIQualityScore:    8,
		},
		NewsSignals: []model.NewsSignal{
			{Date: now.Add(-24 * time.Hour), Sentiment: model.SentimentPositive, ImpactScore: 8},
		},
	}

	score := ComputeSignal(rec, DefaultWeights(), now)

	var sum int
	for _, v := range score.Breakdown {
		sum += v
	}
	assert.Equal(t, score.Total, sum)
	assert.GreaterOrEqual(t, score.Total, 0)
	assert.LessOrEqual(t, score.Total, 100)
}

func TestComputeSignal_Idempotent(t *testing.T) {
	now := time.Now()
	rec := &model.BusinessRecord{
		ID:           "x",
		RegistryData: &model.RegistryData{CompanyStatus: "Active"},
		NewsSignals: []model.NewsSignal{
			{Date: now.Add(-time.Hour), Sentiment: model.SentimentNegative, ImpactScore: 5},
		},
	}

	first := ComputeSignal(rec, DefaultWeights(), now)
	for range 5 {
		assert.Equal(t, first, ComputeSignal(rec, DefaultWeights(), now))
	}
}

func TestRegistryScore(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name string
		data *model.RegistryData
		want int
	}{
		{"nil data", nil, 0},
		{"base only", &model.RegistryData{CompanyStatus: "Dissolved"}, 10},
		{"active", &model.RegistryData{CompanyStatus: "Active"}, 25},
		{"vat registered but inactive", &model.RegistryData{VATRegistered: true}, 10},
		{"vat active", &model.RegistryData{VATRegistered: true, VATActive: true}, 18},
		{
			"everything",
			&model.RegistryData{
				CompanyStatus: "Active",
				VATRegistered: true,
				VATActive:     true,
				IndustryCodes: []string{"47.11"},
				EmployeeCount: 3,
			},
			40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, registryScore(tt.data, w))
		})
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name string
		qa   *model.QualityAnalysis
		want int
	}{
		{"nil analysis", nil, 0},
		{"ssl only", &model.QualityAnalysis{HasSSL: true}, 5},
		{"both flags", &model.QualityAnalysis{HasSSL: true, ProfessionalEmail: true}, 10},
		{"ai midrange", &model.QualityAnalysis{AIQualityScore: 6}, 15},
		{"ai rounds half up", &model.QualityAnalysis{AIQualityScore: 5}, 13}, // 12.5 → 13
		{
			"capped at 35 before penalty",
			&model.QualityAnalysis{HasSSL: true, ProfessionalEmail: true, AIQualityScore: 10},
			35,
		},
		{
			"red flag penalty",
			&model.QualityAnalysis{HasSSL: true, ProfessionalEmail: true, AIQualityScore: 10, RedFlags: []string{"a", "b"}},
			29,
		},
		{
			"penalty capped at 10",
			&model.QualityAnalysis{HasSSL: true, ProfessionalEmail: true, AIQualityScore: 10, RedFlags: []string{"a", "b", "c", "d", "e"}},
			25,
		},
		{
			"floor at zero",
			&model.QualityAnalysis{RedFlags: []string{"a", "b", "c", "d"}},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qualityScore(tt.qa))
		})
	}
}

func TestNewsScore(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		signals []model.NewsSignal
		want    int
	}{
		{"no signals is neutral", nil, 12},
		{
			"only stale signals is neutral",
			[]model.NewsSignal{{Date: now.Add(-120 * 24 * time.Hour), Sentiment: model.SentimentNegative, ImpactScore: 10}},
			12,
		},
		{
			"future signals ignored",
			[]model.NewsSignal{{Date: now.Add(24 * time.Hour), Sentiment: model.SentimentNegative, ImpactScore: 10}},
			12,
		},
		{
			"zero impact ignored",
			[]model.NewsSignal{{Date: now.Add(-time.Hour), Sentiment: model.SentimentNegative, ImpactScore: 0}},
			12,
		},
		{
			"all positive maxes out",
			[]model.NewsSignal{{Date: now.Add(-time.Hour), Sentiment: model.SentimentPositive, ImpactScore: 10}},
			25,
		},
		{
			"all negative bottoms out",
			[]model.NewsSignal{{Date: now.Add(-time.Hour), Sentiment: model.SentimentNegative, ImpactScore: 10}},
			0,
		},
		{
			"neutral sentiment lands mid-range",
			[]model.NewsSignal{{Date: now.Add(-time.Hour), Sentiment: model.SentimentNeutral, ImpactScore: 10}},
			13, // round(12.5)
		},
		{
			"impact weighting favors the louder story",
			[]model.NewsSignal{
				{Date: now.Add(-time.Hour), Sentiment: model.SentimentPositive, ImpactScore: 9},
				{Date: now.Add(-2 * time.Hour), Sentiment: model.SentimentNegative, ImpactScore: 1},
			},
			23, // norm = 0.8, round(12.5 + 10) = 23
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newsScore(tt.signals, now))
		})
	}
}

func TestComputeCompleteness(t *testing.T) {
	t.Run("empty record", func(t *testing.T) {
		score := ComputeCompleteness(&model.BusinessRecord{})
		assert.Equal(t, 0, score.Total)
	})

	t.Run("verified registry alone", func(t *testing.T) {
		score := ComputeCompleteness(&model.BusinessRecord{
			VerificationStatus: model.VerificationVerified,
			RegistryData:       &model.RegistryData{CompanyStatus: "Active"},
		})
		assert.Equal(t, 40, score.Total)
		assert.Equal(t, 40, score.Breakdown["registry"])
	})

	t.Run("verified status without snapshot scores nothing", func(t *testing.T) {
		score := ComputeCompleteness(&model.BusinessRecord{
			VerificationStatus: model.VerificationVerified,
		})
		assert.Equal(t, 0, score.Breakdown["registry"])
	})

	t.Run("full record hits 100", func(t *testing.T) {
		longDesc := make([]byte, 250)
		for i := range longDesc {
			longDesc[i] = 'x'
		}
		score := ComputeCompleteness(&model.BusinessRecord{
			VerificationStatus: model.VerificationVerified,
			RegistryData:       &model.RegistryData{CompanyStatus: "Active"},
			QualityAnalysis: &model.QualityAnalysis{
				Description:       string(longDesc),
				LogoURL:           "https://example.com/logo.png",
				SocialLinks:       []string{"https://linkedin.com/company/x", "https://facebook.com/x"},
				Sitelinks:         []string{"/about"},
				Categories:        []string{"retail"},
				Translations:      []string{"en"},
				ProfessionalEmail: true,
				AIIndustry:        "Retail",
				HasSSL:            true,
				IndexedPages:      12,
			},
		})
		require.Equal(t, 100, score.Total)
		assert.Equal(t, 30, score.Breakdown["presence"])
		assert.Equal(t, 20, score.Breakdown["quality"])
		assert.Equal(t, 10, score.Breakdown["technical"])
	})
}
