package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veridex-labs/trustpipe/internal/model"
)

// memRecords is an in-memory RecordStore for engine tests.
type memRecords struct {
	mu      sync.Mutex
	records map[string]model.BusinessRecord
	// failDelete makes DeleteByID fail for the given IDs.
	failDelete map[string]bool
	deleted    []string
}

func newMemRecords(records ...model.BusinessRecord) *memRecords {
	m := &memRecords{
		records:    make(map[string]model.BusinessRecord),
		failDelete: make(map[string]bool),
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *memRecords) UpsertByOrgNumber(context.Context, model.CandidateRecord) (*model.BusinessRecord, bool, error) {
	panic("not used")
}

func (m *memRecords) FindByID(_ context.Context, id string) (*model.BusinessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memRecords) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete[id] {
		return eris.New("simulated delete failure")
	}
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memRecords) QueryRecent(context.Context, time.Duration) ([]model.BusinessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BusinessRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRecords) SetDomain(context.Context, string, string) error { return nil }
func (m *memRecords) SetRegistryData(context.Context, string, *model.RegistryData) error {
	return nil
}
func (m *memRecords) SetQualityAnalysis(context.Context, string, *model.QualityAnalysis) error {
	return nil
}
func (m *memRecords) AppendNewsSignal(context.Context, string, model.NewsSignal) error { return nil }
func (m *memRecords) SetTrustScore(context.Context, string, int, map[string]int) error { return nil }
func (m *memRecords) SetVerificationStatus(context.Context, string, model.VerificationStatus) error {
	return nil
}

// memAudit records audit entries in memory.
type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *memAudit) RecordAudit(_ context.Context, e model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) AuditCounts(context.Context, time.Time) (int, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries), 0, nil
}
