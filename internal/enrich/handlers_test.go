package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridex-labs/trustpipe/internal/adapter"
	"github.com/veridex-labs/trustpipe/internal/config"
	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/internal/trust"
	"github.com/veridex-labs/trustpipe/internal/worker"
)

func testPipeline(t *testing.T, st *memStore, src adapter.SourceAdapter) *Pipeline {
	t.Helper()
	adapters := adapter.NewRegistry()
	if src != nil {
		require.NoError(t, adapters.Register(src))
	}
	engine, err := trust.NewEngine(st, config.TrustConfig{Scheme: "signal"})
	require.NoError(t, err)
	prober := NewProber(config.ProbeConfig{TimeoutSecs: 5, RequestsPerSecond: 100})
	analyzer := NewAnalyzer(config.AnthropicConfig{}) // disabled
	return NewPipeline(st, adapters, prober, analyzer, engine)
}

func TestPipeline_RegisterHandlers(t *testing.T) {
	p := testPipeline(t, newMemStore(), nil)
	reg := worker.NewRegistry()
	require.NoError(t, p.RegisterHandlers(reg))
	assert.Equal(t, []string{model.JobTypeDiscover, model.JobTypeIndex, model.JobTypeRegistry}, reg.Types())
}

func TestHandleDiscover_EnqueuesRegistryForNewRecords(t *testing.T) {
	st := newMemStore()
	// Pre-existing record: discovery refreshes it, no new registry job.
	st.add(model.BusinessRecord{ID: "existing", OrgNumber: "111", CountryCode: "NO", LegalName: "Old Name AS"})

	src := &fakeAdapter{
		name: "test-src",
		candidates: []model.CandidateRecord{
			{OrgNumber: "111", CountryCode: "NO", LegalName: "Example AS"},
			{OrgNumber: "222", CountryCode: "NO", LegalName: "Fresh AS", Domain: "fresh.no"},
			{LegalName: "No Identity"}, // skipped
		},
	}
	p := testPipeline(t, st, src)

	result, err := p.HandleDiscover(context.Background(), &model.Job{
		Type:    model.JobTypeDiscover,
		Payload: model.JobPayload{Source: "test-src", CountryCode: "NO"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Summary, "1 new")
	assert.Contains(t, result.Summary, "1 refreshed")

	registryJobs := st.jobsOfType(model.JobTypeRegistry)
	require.Len(t, registryJobs, 1)
	assert.Equal(t, "NO", registryJobs[0].Payload.CountryCode)
	assert.Equal(t, "test-src", registryJobs[0].Payload.Source)

	// The refreshed record picked up the new legal name.
	rec, err := st.FindByID(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "Example AS", rec.LegalName)
}

func TestHandleDiscover_UnknownSource(t *testing.T) {
	p := testPipeline(t, newMemStore(), nil)
	_, err := p.HandleDiscover(context.Background(), &model.Job{
		Payload: model.JobPayload{Source: "nope"},
	})
	assert.Error(t, err)
}

func TestHandleRegistry_VerifiesAndChainsIndexing(t *testing.T) {
	st := newMemStore()
	rec := st.add(model.BusinessRecord{
		ID: "biz-1", OrgNumber: "999", CountryCode: "NO",
		LegalName: "Example AS", Domain: "example.no",
		VerificationStatus: model.VerificationPending,
	})

	src := &fakeAdapter{
		name: "registry-src",
		registry: map[string]*model.RegistryData{
			"NO/999": {CompanyStatus: "Active", VATRegistered: true, VATActive: true},
		},
	}
	p := testPipeline(t, st, src)

	result, err := p.HandleRegistry(context.Background(), &model.Job{
		Type:    model.JobTypeRegistry,
		Payload: model.JobPayload{BusinessID: rec.ID, Source: "registry-src"},
	})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, result.EntityID)

	stored, err := st.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, stored.VerificationStatus)
	require.NotNil(t, stored.RegistryData)
	assert.Equal(t, "Active", stored.RegistryData.CompanyStatus)
	// registry 33 (base+active+vat) + news 12.
	assert.Equal(t, 45, stored.TrustScore)
	assert.NotNil(t, stored.LastVerifiedAt)

	indexJobs := st.jobsOfType(model.JobTypeIndex)
	require.Len(t, indexJobs, 1)
	assert.Equal(t, rec.ID, indexJobs[0].Payload.BusinessID)
	assert.Equal(t, "example.no", indexJobs[0].Payload.URL)
}

func TestHandleRegistry_NoEntryMarksFailed(t *testing.T) {
	st := newMemStore()
	rec := st.add(model.BusinessRecord{
		ID: "biz-1", OrgNumber: "404", CountryCode: "NO", LegalName: "Ghost AS",
	})
	src := &fakeAdapter{name: "registry-src", registry: map[string]*model.RegistryData{}}
	p := testPipeline(t, st, src)

	_, err := p.HandleRegistry(context.Background(), &model.Job{
		Payload: model.JobPayload{BusinessID: rec.ID, Source: "registry-src"},
	})
	require.NoError(t, err)

	stored, err := st.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationFailed, stored.VerificationStatus)
	assert.Empty(t, st.jobsOfType(model.JobTypeIndex))
}

func TestHandleRegistry_MissingRecord(t *testing.T) {
	p := testPipeline(t, newMemStore(), &fakeAdapter{name: "s"})
	_, err := p.HandleRegistry(context.Background(), &model.Job{
		Payload: model.JobPayload{BusinessID: "ghost", Source: "s"},
	})
	assert.Error(t, err)
}

func TestHandleIndex_MergesFindingsAndRescores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Example AS</title>` +
			`<meta name="description" content="Industrial supplies."></head>` +
			`<body><a href="/about">About</a></body></html>`))
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	st := newMemStore()
	rec := st.add(model.BusinessRecord{
		ID: "biz-1", OrgNumber: "1", CountryCode: "NO", LegalName: "Example AS",
		Domain: host,
		QualityAnalysis: &model.QualityAnalysis{
			AISummary: "prior summary", AIQualityScore: 6,
		},
	})
	p := testPipeline(t, st, nil)

	result, err := p.HandleIndex(context.Background(), &model.Job{
		Type:    model.JobTypeIndex,
		Payload: model.JobPayload{BusinessID: rec.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, result.EntityID)

	stored, err := st.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.QualityAnalysis)
	// Probe findings landed.
	assert.Equal(t, "Industrial supplies.", stored.QualityAnalysis.Description)
	// Prior AI findings survived the merge.
	assert.Equal(t, "prior summary", stored.QualityAnalysis.AISummary)
	assert.Equal(t, 6, stored.QualityAnalysis.AIQualityScore)
	// quality 15 (ai 6 → 15) + news 12.
	assert.Equal(t, 27, stored.TrustScore)
}

func TestHandleIndex_NoDomain(t *testing.T) {
	st := newMemStore()
	rec := st.add(model.BusinessRecord{ID: "biz-1", OrgNumber: "1", CountryCode: "NO"})
	p := testPipeline(t, st, nil)

	_, err := p.HandleIndex(context.Background(), &model.Job{
		Payload: model.JobPayload{BusinessID: rec.ID},
	})
	assert.Error(t, err)
}

func TestAddNewsSignal_AppendsAndRescores(t *testing.T) {
	st := newMemStore()
	rec := st.add(model.BusinessRecord{ID: "biz-1", OrgNumber: "1", CountryCode: "NO"})
	p := testPipeline(t, st, nil)

	err := p.AddNewsSignal(context.Background(), rec.ID, model.NewsSignal{
		Sentiment:   model.SentimentPositive,
		ImpactScore: 10,
		Source:      "wire",
	})
	require.NoError(t, err)

	stored, err := st.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, stored.NewsSignals, 1)
	assert.WithinDuration(t, time.Now(), stored.NewsSignals[0].Date, time.Minute)
	// news 25, nothing else.
	assert.Equal(t, 25, stored.TrustScore)
}
