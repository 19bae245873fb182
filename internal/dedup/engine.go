package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veridex-labs/trustpipe/internal/model"
	"github.com/veridex-labs/trustpipe/internal/store"
)

// DefaultJaccardThreshold is the token-similarity bar for a candidate
// pair when bare names are not identical.
const DefaultJaccardThreshold = 0.66

// countryPriority orders winner selection; countries in this list sort
// before countries that are not. Ties among listed countries keep input
// order.
var countryPriority = map[string]bool{
	"NO": true,
	"DE": true,
	"US": true,
	"GB": true,
}

// Group is one set of records believed to be the same real business,
// resolved to a winner and the superseded losers.
type Group struct {
	Winner model.BusinessRecord
	Losers []model.BusinessRecord
}

// Stats summarizes one sweep.
type Stats struct {
	RecordsScanned int
	GroupsFound    int
	GroupsResolved int
	GroupsFailed   int
	RecordsDeleted int
}

// Engine finds and resolves duplicate business records.
type Engine struct {
	records   store.RecordStore
	audit     store.AuditLog
	threshold float64
	parallel  int
}

// NewEngine creates a dedup engine. threshold <= 0 uses the default;
// parallel <= 0 disables per-country parallelism.
func NewEngine(records store.RecordStore, audit store.AuditLog, threshold float64, parallel int) *Engine {
	if threshold <= 0 {
		threshold = DefaultJaccardThreshold
	}
	if parallel <= 0 {
		parallel = 1
	}
	return &Engine{records: records, audit: audit, threshold: threshold, parallel: parallel}
}

// Sweep groups and resolves duplicates among records touched within the
// window. A store failure during one group's resolution aborts only
// that group; the sweep continues.
func (e *Engine) Sweep(ctx context.Context, window time.Duration) (*Stats, error) {
	records, err := e.records.QueryRecent(ctx, window)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: query recent records")
	}
	return e.sweepRecords(ctx, records)
}

// SweepAll partitions the working set by country and resolves each
// partition's groups in parallel. Groups never span partitions because
// duplicate candidates share a domain and the partition key only
// shrinks the pairing search space within one batch run.
func (e *Engine) SweepAll(ctx context.Context, window time.Duration) (*Stats, error) {
	records, err := e.records.QueryRecent(ctx, window)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: query recent records")
	}

	byDomain := make(map[string][]model.BusinessRecord)
	for _, r := range records {
		d := NormalizeDomain(r.Domain)
		if d == "" {
			continue
		}
		byDomain[d] = append(byDomain[d], r)
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	total := &Stats{RecordsScanned: len(records)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	results := make([]*Stats, len(domains))

	for i, d := range domains {
		batch := byDomain[d]
		g.Go(func() error {
			stats, err := e.sweepRecords(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range results {
		if s == nil {
			continue
		}
		total.GroupsFound += s.GroupsFound
		total.GroupsResolved += s.GroupsResolved
		total.GroupsFailed += s.GroupsFailed
		total.RecordsDeleted += s.RecordsDeleted
	}
	return total, nil
}

func (e *Engine) sweepRecords(ctx context.Context, records []model.BusinessRecord) (*Stats, error) {
	stats := &Stats{RecordsScanned: len(records)}

	groups := GroupRecords(records, e.threshold)
	stats.GroupsFound = len(groups)

	for _, members := range groups {
		group := SelectWinner(members)
		if err := e.resolve(ctx, group); err != nil {
			stats.GroupsFailed++
			zap.L().Error("dedup: group resolution failed",
				zap.String("winner_id", group.Winner.ID),
				zap.Int("losers", len(group.Losers)),
				zap.Error(err),
			)
			continue
		}
		stats.GroupsResolved++
		stats.RecordsDeleted += len(group.Losers)
	}

	return stats, nil
}

// GroupRecords partitions the working set into duplicate groups via
// union-find over candidate pairs. Records without a normalizable
// domain are never grouped. Returned groups preserve input order.
func GroupRecords(records []model.BusinessRecord, threshold float64) [][]model.BusinessRecord {
	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	// Bucket by normalized domain: cross-domain matches are never
	// attempted, so pairing only happens inside a bucket.
	buckets := make(map[string][]matchKey)
	order := make([]string, 0)
	for i, r := range records {
		d := NormalizeDomain(r.Domain)
		if d == "" {
			continue
		}
		if _, seen := buckets[d]; !seen {
			order = append(order, d)
		}
		buckets[d] = append(buckets[d], matchKey{
			idx:    i,
			domain: d,
			bare:   BareName(r.LegalName),
			tokens: nameTokens(r.LegalName),
		})
	}

	for _, d := range order {
		bucket := buckets[d]
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if isCandidatePair(records[bucket[i].idx], records[bucket[j].idx],
					bucket[i], bucket[j], threshold) {
					union(bucket[i].idx, bucket[j].idx)
				}
			}
		}
	}

	componentOf := make(map[int][]int)
	roots := make([]int, 0)
	for i := range records {
		root := find(i)
		if _, seen := componentOf[root]; !seen {
			roots = append(roots, root)
		}
		componentOf[root] = append(componentOf[root], i)
	}

	var groups [][]model.BusinessRecord
	for _, root := range roots {
		members := componentOf[root]
		if len(members) < 2 {
			continue
		}
		group := make([]model.BusinessRecord, 0, len(members))
		for _, idx := range members {
			group = append(group, records[idx])
		}
		groups = append(groups, group)
	}
	return groups
}

// matchKey caches the normalized forms of one record during grouping.
type matchKey struct {
	idx    int
	domain string
	bare   string
	tokens map[string]bool
}

// isCandidatePair applies the pairing rule: equal non-empty normalized
// domains, and any of bare-name equality, token Jaccard above the
// threshold, or dot-truncated equality.
func isCandidatePair(a, b model.BusinessRecord, ka, kb matchKey, threshold float64) bool {
	if ka.domain == "" || ka.domain != kb.domain {
		return false
	}

	if ka.bare != "" && ka.bare == kb.bare {
		return true
	}

	if jaccard(ka.tokens, kb.tokens) > threshold {
		return true
	}

	ta, dotA := dotTruncated(a.LegalName)
	tb, dotB := dotTruncated(b.LegalName)
	if (dotA || dotB) && ta != "" && ta == tb {
		return true
	}

	return false
}

// SelectWinner orders a group deterministically and designates the
// first member the winner: priority-listed countries first, then higher
// trust score, then older createdAt. The sort is stable, so equal
// members keep input order.
func SelectWinner(members []model.BusinessRecord) Group {
	sorted := make([]model.BusinessRecord, len(members))
	copy(sorted, members)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := countryPriority[sorted[i].CountryCode], countryPriority[sorted[j].CountryCode]
		if pi != pj {
			return pi
		}
		if sorted[i].TrustScore != sorted[j].TrustScore {
			return sorted[i].TrustScore > sorted[j].TrustScore
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	return Group{Winner: sorted[0], Losers: sorted[1:]}
}

// resolve deletes every loser. The winner is left untouched: loser
// enrichment is not folded in, the winner is re-enriched by the normal
// jobs. Deletions are audited so discarded records can be traced.
func (e *Engine) resolve(ctx context.Context, group Group) error {
	for _, loser := range group.Losers {
		if err := e.records.DeleteByID(ctx, loser.ID); err != nil {
			return eris.Wrapf(err, "dedup: delete loser %s", loser.ID)
		}
		e.auditDelete(ctx, group.Winner, loser)
		zap.L().Info("dedup: superseded record deleted",
			zap.String("loser_id", loser.ID),
			zap.String("loser_name", loser.LegalName),
			zap.String("winner_id", group.Winner.ID),
			zap.String("domain", loser.Domain),
		)
	}
	return nil
}

func (e *Engine) auditDelete(ctx context.Context, winner, loser model.BusinessRecord) {
	if e.audit == nil {
		return
	}
	entry := model.AuditEntry{
		WorkerName:      "dedup-engine",
		Action:          "dedup:delete",
		RelatedEntityID: loser.ID,
		URL:             loser.Domain,
		Details: fmt.Sprintf("superseded by %s (%s %s); discarded name=%q org=%s/%s",
			winner.ID, winner.CountryCode, winner.LegalName,
			loser.LegalName, loser.CountryCode, loser.OrgNumber),
		Success:   true,
		Timestamp: time.Now().UTC(),
	}
	if err := e.audit.RecordAudit(ctx, entry); err != nil {
		zap.L().Warn("dedup: audit write failed", zap.Error(err))
	}
}
