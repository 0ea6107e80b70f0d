package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rsummers/bidwatch/internal/models"
	"github.com/rsummers/bidwatch/internal/pricing"
)

// ErrNotFound is returned when an opportunity id does not resolve.
var ErrNotFound = errors.New("opportunity not found")

type Store struct {
	pool *pgxpool.Pool
	high int // high-relevance threshold used by the list stats block
}

func NewStore(pool *pgxpool.Pool, highThreshold int) *Store {
	if highThreshold <= 0 {
		highThreshold = 50
	}
	return &Store{pool: pool, high: highThreshold}
}

// OpportunityFilter narrows the worklist. Zero values are not
// constraints. NSNOnly keeps opportunities with at least one exact
// stock-number match; FSCOnly keeps those with a class-code match and no
// stock-number match — the two buckets never overlap.
type OpportunityFilter struct {
	MinScore    int
	ShowExpired bool
	NSNOnly     bool
	FSCOnly     bool
	Status      string
	Limit       int
	Offset      int
}

// ListStats is the summary block returned alongside the worklist, always
// computed over the non-expired (unless ShowExpired) population before
// the NSNOnly/FSCOnly narrowing is applied.
type ListStats struct {
	Total    int `json:"total"`
	High     int `json:"high"`
	NSNMatch int `json:"nsnMatch"`
	FSCMatch int `json:"fscMatch"`
}

type OpportunityList struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Stats         ListStats            `json:"stats"`
}

const selectCols = `id, notice_id, solicitation_number, title, description,
	naics, psc, set_aside, response_deadline, score, matched_nsns,
	matched_class_code, status, dismissed_reason, is_sentinel, created_at, updated_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	var status string
	var matchedRaw []byte

	err := scan(
		&o.ID, &o.NoticeID, &o.SolicitationNum, &o.Title, &o.Description,
		&o.NAICS, &o.PSC, &o.SetAside, &o.ResponseDeadline, &o.Score, &matchedRaw,
		&o.MatchedClassCode, &status, &o.DismissedReason, &o.IsSentinel, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Status = models.Status(status)
	o.MatchedNSNs = decodeMatchedNSNs(matchedRaw)

	return o, nil
}

// decodeMatchedNSNs parses the persisted JSONB array of matched stock
// numbers. Legacy or malformed payloads fail closed to "no match"
// rather than surfacing a parse error into scoring or reporting.
func decodeMatchedNSNs(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// buildOpportunityWhere renders the shared filter constraints. The
// NSNOnly/FSCOnly narrowing is appended separately so the stats block
// can be computed over the wider population.
func buildOpportunityWhere(f OpportunityFilter) (string, []interface{}) {
	where := "WHERE is_sentinel = FALSE"
	var args []interface{}
	argIdx := 1

	if !f.ShowExpired {
		where += " AND (response_deadline IS NULL OR response_deadline >= NOW())"
	}
	if f.MinScore > 0 {
		where += fmt.Sprintf(" AND score >= $%d", argIdx)
		args = append(args, f.MinScore)
		argIdx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}

	return where, args
}

// nsnMatchClause keeps rows with at least one matched stock number.
const nsnMatchClause = "jsonb_array_length(matched_nsns) > 0"

// fscMatchClause keeps class-code matches, which by construction never
// carry a stock-number match; the extra length check keeps the buckets
// disjoint even against legacy rows.
const fscMatchClause = "matched_class_code <> '' AND jsonb_array_length(matched_nsns) = 0"

func (s *Store) ListOpportunities(ctx context.Context, f OpportunityFilter) (*OpportunityList, error) {
	where, args := buildOpportunityWhere(f)

	statsSQL := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE score >= %d),
			COUNT(*) FILTER (WHERE %s),
			COUNT(*) FILTER (WHERE %s)
		FROM opportunities %s`, s.high, nsnMatchClause, fscMatchClause, where)

	var stats ListStats
	if err := s.pool.QueryRow(ctx, statsSQL, args...).Scan(&stats.Total, &stats.High, &stats.NSNMatch, &stats.FSCMatch); err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}

	listWhere := where
	if f.NSNOnly {
		listWhere += " AND " + nsnMatchClause
	}
	if f.FSCOnly {
		listWhere += " AND " + fscMatchClause
	}

	listSQL := fmt.Sprintf(`SELECT %s FROM opportunities %s
		ORDER BY score DESC, response_deadline ASC NULLS LAST, created_at DESC`, selectCols, listWhere)

	argIdx := len(args) + 1
	if f.Limit > 0 {
		listSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if opps == nil {
		opps = []models.Opportunity{}
	}

	return &OpportunityList{Opportunities: opps, Stats: stats}, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	sql := fmt.Sprintf("SELECT %s FROM opportunities WHERE id = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, id)

	o, err := scanOpportunity(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get failed: %w", err)
	}

	return &o, nil
}

// UpsertOpportunity inserts a freshly ingested opportunity or refreshes
// an existing one keyed by notice id. Review status and dismissal reason
// are operator-owned and never overwritten on refresh.
func (s *Store) UpsertOpportunity(ctx context.Context, o *models.Opportunity) error {
	matched, err := json.Marshal(nonNil(o.MatchedNSNs))
	if err != nil {
		return fmt.Errorf("encoding matched nsns: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO opportunities (
			notice_id, solicitation_number, title, description, naics, psc,
			set_aside, response_deadline, score, matched_nsns, matched_class_code, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'new')
		ON CONFLICT (notice_id) DO UPDATE SET
			solicitation_number = EXCLUDED.solicitation_number,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			naics = EXCLUDED.naics,
			psc = EXCLUDED.psc,
			set_aside = EXCLUDED.set_aside,
			response_deadline = EXCLUDED.response_deadline,
			score = EXCLUDED.score,
			matched_nsns = EXCLUDED.matched_nsns,
			matched_class_code = EXCLUDED.matched_class_code,
			updated_at = NOW()
	`, o.NoticeID, o.SolicitationNum, o.Title, o.Description, o.NAICS, o.PSC,
		o.SetAside, o.ResponseDeadline, o.Score, matched, o.MatchedClassCode)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}

	return nil
}

// UpdateOpportunityStatus persists a validated status change. The
// dismissal reason column mirrors the reason argument exactly: nil
// clears it.
func (s *Store) UpdateOpportunityStatus(ctx context.Context, id uuid.UUID, status models.Status, reason *string) (*models.Opportunity, error) {
	sql := fmt.Sprintf(`
		UPDATE opportunities
		SET status = $2, dismissed_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, selectCols)

	row := s.pool.QueryRow(ctx, sql, id, string(status), reason)
	o, err := scanOpportunity(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("status update failed: %w", err)
	}

	return &o, nil
}

// UpdateOpportunityMatch persists a re-evaluation of one opportunity's
// match result and score, leaving review state untouched.
func (s *Store) UpdateOpportunityMatch(ctx context.Context, id uuid.UUID, score int, nsns []string, classCode string) error {
	matched, err := json.Marshal(nonNil(nsns))
	if err != nil {
		return fmt.Errorf("encoding matched nsns: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities
		SET score = $2, matched_nsns = $3, matched_class_code = $4, updated_at = NOW()
		WHERE id = $1
	`, id, score, matched, classCode)
	if err != nil {
		return fmt.Errorf("match update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListOpportunityBatch pages through all non-sentinel opportunities in
// insertion order, for batch re-evaluation.
func (s *Store) ListOpportunityBatch(ctx context.Context, limit, offset int) ([]models.Opportunity, error) {
	sql := fmt.Sprintf(`SELECT %s FROM opportunities
		WHERE is_sentinel = FALSE
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2`, selectCols)

	rows, err := s.pool.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("batch query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return opps, nil
}

// buildPricingWhere renders the pricing filter as SQL. Absent fields add
// no constraint; keywords become an OR group of substring matches.
func buildPricingWhere(f pricing.Filters, cutoff time.Time) (string, []interface{}) {
	where := "WHERE award_date >= $1"
	args := []interface{}{cutoff}
	argIdx := 2

	if f.NSN != "" {
		where += fmt.Sprintf(" AND nsn = $%d", argIdx)
		args = append(args, f.NSN)
		argIdx++
	}
	if f.PSC != "" {
		where += fmt.Sprintf(" AND psc = $%d", argIdx)
		args = append(args, f.PSC)
		argIdx++
	}
	if f.NAICS != "" {
		where += fmt.Sprintf(" AND naics = $%d", argIdx)
		args = append(args, f.NAICS)
		argIdx++
	}
	if len(f.Keywords) > 0 {
		var parts []string
		for _, kw := range f.Keywords {
			parts = append(parts, fmt.Sprintf("keywords ILIKE '%%' || $%d || '%%'", argIdx))
			args = append(args, kw)
			argIdx++
		}
		where += " AND (" + strings.Join(parts, " OR ") + ")"
	}

	return where, args
}

func (s *Store) QueryPricing(ctx context.Context, f pricing.Filters, cutoff time.Time) ([]models.PricingRecord, error) {
	where, args := buildPricingWhere(f, cutoff)
	sql := `SELECT id, nsn, psc, naics, keywords, unit_price, quantity, award_date, vendor_id
		FROM pricing_records ` + where + ` ORDER BY award_date DESC`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pricing query failed: %w", err)
	}
	defer rows.Close()

	var records []models.PricingRecord
	for rows.Next() {
		var r models.PricingRecord
		if err := rows.Scan(&r.ID, &r.NSN, &r.PSC, &r.NAICS, &r.Keywords, &r.UnitPrice, &r.Quantity, &r.AwardDate, &r.VendorID); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return records, nil
}

// CountOpenOpportunities counts the active worklist: not a sentinel, not
// already imported, and not past its response deadline.
func (s *Store) CountOpenOpportunities(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM opportunities
		WHERE is_sentinel = FALSE
		AND status <> 'imported'
		AND (response_deadline IS NULL OR response_deadline >= $1)
	`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("open count failed: %w", err)
	}
	return n, nil
}

// CountDueBetween counts opportunities whose deadline falls inside the
// inclusive window.
func (s *Store) CountDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM opportunities
		WHERE is_sentinel = FALSE
		AND response_deadline BETWEEN $1 AND $2
	`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("due count failed: %w", err)
	}
	return n, nil
}

// CountRecentWins counts distinct opportunities linked to an order
// created since the given time.
func (s *Store) CountRecentWins(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT ol.opportunity_id)
		FROM order_links ol
		JOIN opportunities o ON o.id = ol.opportunity_id
		WHERE ol.created_at >= $1 AND o.is_sentinel = FALSE
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("recent wins count failed: %w", err)
	}
	return n, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
