package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/adapter"
	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/internal/store"
	"github.com/veridex-labs/trustpipe/internal/trust"
	"github.com/veridex-labs/trustpipe/internal/worker"
)

// Pipeline wires the enrichment stages into queue job handlers:
// discover feeds registry verification, registry verification feeds
// website indexing, and every stage ends with a trust recompute.
type Pipeline struct {
	store    store.Store
	adapters *adapter.Registry
	prober   *Prober
	analyzer *Analyzer
	trust    *trust.Engine
}

// NewPipeline assembles the handler set.
func NewPipeline(st store.Store, adapters *adapter.Registry, prober *Prober, analyzer *Analyzer, engine *trust.Engine) *Pipeline {
	return &Pipeline{
		store:    st,
		adapters: adapters,
		prober:   prober,
		analyzer: analyzer,
		trust:    engine,
	}
}

// RegisterHandlers binds the pipeline's handlers to their job types.
func (p *Pipeline) RegisterHandlers(reg *worker.Registry) error {
	if err := reg.Register(model.JobTypeDiscover, p.HandleDiscover); err != nil {
		return err
	}
	if err := reg.Register(model.JobTypeRegistry, p.HandleRegistry); err != nil {
		return err
	}
	return reg.Register(model.JobTypeIndex, p.HandleIndex)
}

// HandleDiscover asks a source adapter for candidate businesses, upserts
// each one, and enqueues registry verification for newly created
// records. Existing records are refreshed in place and not re-verified.
func (p *Pipeline) HandleDiscover(ctx context.Context, job *model.Job) (*worker.Result, error) {
	src, err := p.adapters.Lookup(job.Payload.Source)
	if err != nil {
		return nil, err
	}

	candidates, err := src.Discover(ctx, adapter.DiscoverQuery{
		CountryCode:  job.Payload.CountryCode,
		IndustryCode: job.Payload.IndustryCode,
		Query:        job.Payload.Query,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: discover via %s", src.Name())
	}

	var created, refreshed int
	for _, cand := range candidates {
		if cand.OrgNumber == "" || cand.CountryCode == "" {
			zap.L().Warn("enrich: candidate without identity skipped",
				zap.String("source", src.Name()),
				zap.String("legal_name", cand.LegalName),
			)
			continue
		}
		rec, isNew, err := p.store.UpsertByOrgNumber(ctx, cand)
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: upsert candidate %s/%s", cand.CountryCode, cand.OrgNumber)
		}
		if isNew {
			created++
			if _, err := p.store.Enqueue(ctx, model.JobTypeRegistry, model.JobPayload{
				BusinessID:  rec.ID,
				CountryCode: rec.CountryCode,
				Source:      src.Name(),
			}, job.Priority); err != nil {
				return nil, eris.Wrapf(err, "enrich: enqueue registry job for %s", rec.ID)
			}
		} else {
			refreshed++
		}
	}

	return &worker.Result{
		Summary: fmt.Sprintf("discovered %d candidates (%d new, %d refreshed) via %s",
			len(candidates), created, refreshed, src.Name()),
	}, nil
}

// HandleRegistry fetches the authoritative registry snapshot for one
// record, overwrites the stored snapshot wholesale, marks verification,
// recomputes trust, and enqueues website indexing when a domain is
// known. A source with no entry marks the record failed verification
// rather than erroring the job.
func (p *Pipeline) HandleRegistry(ctx context.Context, job *model.Job) (*worker.Result, error) {
	rec, err := p.loadRecord(ctx, job.Payload.BusinessID)
	if err != nil {
		return nil, err
	}

	src, err := p.adapters.Lookup(job.Payload.Source)
	if err != nil {
		return nil, err
	}

	data, err := src.FetchRegistry(ctx, rec.CountryCode, rec.OrgNumber)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: fetch registry %s/%s via %s",
			rec.CountryCode, rec.OrgNumber, src.Name())
	}

	if data == nil {
		if err := p.store.SetVerificationStatus(ctx, rec.ID, model.VerificationFailed); err != nil {
			return nil, eris.Wrapf(err, "enrich: mark verification failed for %s", rec.ID)
		}
		return &worker.Result{
			Summary:  fmt.Sprintf("no registry entry for %s/%s in %s", rec.CountryCode, rec.OrgNumber, src.Name()),
			EntityID: rec.ID,
		}, nil
	}

	if err := p.store.SetRegistryData(ctx, rec.ID, data); err != nil {
		return nil, eris.Wrapf(err, "enrich: store registry data for %s", rec.ID)
	}
	if err := p.store.SetVerificationStatus(ctx, rec.ID, model.VerificationVerified); err != nil {
		return nil, eris.Wrapf(err, "enrich: mark verified for %s", rec.ID)
	}

	rec.RegistryData = data
	rec.VerificationStatus = model.VerificationVerified
	if _, err := p.trust.Recompute(ctx, rec); err != nil {
		return nil, err
	}

	if rec.Domain != "" {
		if _, err := p.store.Enqueue(ctx, model.JobTypeIndex, model.JobPayload{
			BusinessID: rec.ID,
			URL:        rec.Domain,
		}, job.Priority); err != nil {
			return nil, eris.Wrapf(err, "enrich: enqueue index job for %s", rec.ID)
		}
	}

	return &worker.Result{
		Summary:  fmt.Sprintf("registry verified %s/%s (status %s)", rec.CountryCode, rec.OrgNumber, data.CompanyStatus),
		EntityID: rec.ID,
	}, nil
}

// HandleIndex probes the record's website, runs the AI analyzer when
// enabled, merges findings into the stored quality analysis, and
// recomputes trust. Probe findings persist even when the analyzer is
// unavailable or fails to parse.
func (p *Pipeline) HandleIndex(ctx context.Context, job *model.Job) (*worker.Result, error) {
	rec, err := p.loadRecord(ctx, job.Payload.BusinessID)
	if err != nil {
		return nil, err
	}

	domain := job.Payload.URL
	if domain == "" {
		domain = rec.Domain
	}
	if domain == "" {
		return nil, eris.Errorf("enrich: record %s has no domain to index", rec.ID)
	}

	probe, err := p.prober.Probe(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !probe.Reachable {
		return &worker.Result{
			Summary:  "website unreachable: " + domain,
			EntityID: rec.ID,
			URL:      domain,
		}, nil
	}

	incoming := probe.Analysis
	if p.analyzer.Enabled() {
		aiPart, err := p.analyzer.Analyze(ctx, rec, probe.Body)
		if err != nil {
			// Probe findings are still worth keeping; AI enrichment can be
			// retried on the next index run.
			zap.L().Warn("enrich: quality analysis failed",
				zap.String("business_id", rec.ID),
				zap.Error(err),
			)
		} else if aiPart != nil {
			incoming = MergeQualityAnalysis(incoming, aiPart)
		}
	}

	merged := MergeQualityAnalysis(rec.QualityAnalysis, incoming)
	if err := p.store.SetQualityAnalysis(ctx, rec.ID, merged); err != nil {
		return nil, eris.Wrapf(err, "enrich: store quality analysis for %s", rec.ID)
	}

	rec.QualityAnalysis = merged
	score, err := p.trust.Recompute(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &worker.Result{
		Summary:  fmt.Sprintf("indexed %s (trust %d)", domain, score.Total),
		EntityID: rec.ID,
		URL:      domain,
	}, nil
}

// AddNewsSignal appends a news observation and recomputes trust. Exposed
// for the HTTP surface and operator tooling; there is no queue job type
// for news ingestion yet.
func (p *Pipeline) AddNewsSignal(ctx context.Context, businessID string, sig model.NewsSignal) error {
	rec, err := p.loadRecord(ctx, businessID)
	if err != nil {
		return err
	}
	if sig.Date.IsZero() {
		sig.Date = time.Now().UTC()
	}
	if err := p.store.AppendNewsSignal(ctx, rec.ID, sig); err != nil {
		return eris.Wrapf(err, "enrich: append news signal for %s", rec.ID)
	}
	rec.NewsSignals = append(rec.NewsSignals, sig)
	_, err = p.trust.Recompute(ctx, rec)
	return err
}

func (p *Pipeline) loadRecord(ctx context.Context, id string) (*model.BusinessRecord, error) {
	if id == "" {
		return nil, eris.New("enrich: job payload missing business_id")
	}
	rec, err := p.store.FindByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: load record %s", id)
	}
	if rec == nil {
		return nil, eris.Errorf("enrich: record %s not found", id)
	}
	return rec, nil
}
