package enrich

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/veridex-labs/trustpipe/internal/adapter"
	"github.com/veridex-labs/trustpipe/internal/model"
)

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]*model.BusinessRecord
	jobs    []model.Job
	audits  []model.AuditEntry
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*model.BusinessRecord)}
}

func (m *memStore) add(rec model.BusinessRecord) *model.BusinessRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = &rec
	return &rec
}

func (m *memStore) UpsertByOrgNumber(_ context.Context, cand model.CandidateRecord) (*model.BusinessRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CountryCode == cand.CountryCode && r.OrgNumber == cand.OrgNumber {
			r.LegalName = cand.LegalName
			if cand.Domain != "" {
				r.Domain = cand.Domain
			}
			if cand.RegistryData != nil {
				r.RegistryData = cand.RegistryData
			}
			out := *r
			return &out, false, nil
		}
	}
	m.nextID++
	rec := &model.BusinessRecord{
		ID:                 "rec-" + strconv.Itoa(m.nextID),
		OrgNumber:          cand.OrgNumber,
		LegalName:          cand.LegalName,
		CountryCode:        cand.CountryCode,
		Domain:             cand.Domain,
		RegistryData:       cand.RegistryData,
		VerificationStatus: model.VerificationPending,
		CreatedAt:          time.Now().UTC(),
		UpdatedAt:          time.Now().UTC(),
	}
	m.records[rec.ID] = rec
	out := *rec
	return &out, true, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*model.BusinessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		out := *r
		return &out, nil
	}
	return nil, nil
}

func (m *memStore) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memStore) QueryRecent(context.Context, time.Duration) ([]model.BusinessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BusinessRecord
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) SetDomain(_ context.Context, id, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].Domain = domain
	return nil
}

func (m *memStore) SetRegistryData(_ context.Context, id string, data *model.RegistryData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.records[id].RegistryData = data
	m.records[id].LastVerifiedAt = &now
	return nil
}

func (m *memStore) SetQualityAnalysis(_ context.Context, id string, qa *model.QualityAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].QualityAnalysis = qa
	return nil
}

func (m *memStore) AppendNewsSignal(_ context.Context, id string, sig model.NewsSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].NewsSignals = append(m.records[id].NewsSignals, sig)
	return nil
}

func (m *memStore) SetTrustScore(_ context.Context, id string, score int, breakdown map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].TrustScore = score
	m.records[id].TrustScoreBreakdown = breakdown
	return nil
}

func (m *memStore) SetVerificationStatus(_ context.Context, id string, status model.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].VerificationStatus = status
	return nil
}

func (m *memStore) Enqueue(_ context.Context, jobType string, payload model.JobPayload, priority int) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job := model.Job{
		ID:        "job-" + strconv.Itoa(m.nextID),
		Type:      jobType,
		Payload:   payload,
		Status:    model.JobStatusPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs = append(m.jobs, job)
	return &job, nil
}

func (m *memStore) Claim(context.Context, string, int) ([]model.Job, error) { panic("not used") }

func (m *memStore) MarkStatus(context.Context, string, model.JobStatus, string) error { return nil }

func (m *memStore) CountByStatus(context.Context, string) (map[model.JobStatus]int, error) {
	return nil, nil
}

func (m *memStore) ResetStale(context.Context, time.Duration) (int, error) { return 0, nil }

func (m *memStore) RecordAudit(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memStore) AuditCounts(context.Context, time.Time) (int, int, error) { return 0, 0, nil }

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Ping(context.Context) error    { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) jobsOfType(jobType string) []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Job
	for _, j := range m.jobs {
		if j.Type == jobType {
			out = append(out, j)
		}
	}
	return out
}

// fakeAdapter is a scripted source adapter.
type fakeAdapter struct {
	name       string
	candidates []model.CandidateRecord
	registry   map[string]*model.RegistryData
	err        error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Discover(context.Context, adapter.DiscoverQuery) ([]model.CandidateRecord, error) {
	return f.candidates, f.err
}

func (f *fakeAdapter) FetchRegistry(_ context.Context, countryCode, orgNumber string) (*model.RegistryData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.registry[countryCode+"/"+orgNumber], nil
}
