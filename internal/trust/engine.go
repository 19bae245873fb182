package trust

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridex-labs/trustpipe/internal/config"
	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/internal/store"
)

// Engine computes trust scores under the configured scheme and persists
// them. Recompute is idempotent: the same record state always yields the
// same score.
type Engine struct {
	records store.RecordStore
	scheme  Scheme
	weights Weights
	now     func() time.Time
}

// NewEngine builds an engine from configuration. An empty scheme means
// signal; an unknown scheme is rejected.
func NewEngine(records store.RecordStore, cfg config.TrustConfig) (*Engine, error) {
	scheme := Scheme(cfg.Scheme)
	if scheme == "" {
		scheme = SchemeSignal
	}
	if scheme != SchemeSignal && scheme != SchemeCompleteness {
		return nil, eris.Errorf("trust: unknown scheme %q", cfg.Scheme)
	}

	weights, err := LoadWeights(cfg.WeightsFile)
	if err != nil {
		return nil, err
	}

	return &Engine{
		records: records,
		scheme:  scheme,
		weights: weights,
		now:     time.Now,
	}, nil
}

// Compute scores a record without persisting anything.
func (e *Engine) Compute(rec *model.BusinessRecord) Score {
	switch e.scheme {
	case SchemeCompleteness:
		return ComputeCompleteness(rec)
	default:
		return ComputeSignal(rec, e.weights, e.now())
	}
}

// Recompute scores a record and persists total and breakdown. Returns
// the stored score.
func (e *Engine) Recompute(ctx context.Context, rec *model.BusinessRecord) (Score, error) {
	score := e.Compute(rec)
	if err := e.records.SetTrustScore(ctx, rec.ID, score.Total, score.Breakdown); err != nil {
		return score, eris.Wrapf(err, "trust: persist score for %s", rec.ID)
	}
	zap.L().Debug("trust: score recomputed",
		zap.String("business_id", rec.ID),
		zap.String("scheme", string(e.scheme)),
		zap.Int("total", score.Total),
	)
	return score, nil
}

// RecomputeByID loads a record and recomputes its score. A missing
// record is an error; scoring a deleted record would resurrect nothing
// but still hides a caller bug.
func (e *Engine) RecomputeByID(ctx context.Context, id string) (Score, error) {
	rec, err := e.records.FindByID(ctx, id)
	if err != nil {
		return Score{}, eris.Wrapf(err, "trust: load record %s", id)
	}
	if rec == nil {
		return Score{}, eris.Errorf("trust: record %s not found", id)
	}
	return e.Recompute(ctx, rec)
}
