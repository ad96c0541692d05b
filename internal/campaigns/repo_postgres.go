package campaigns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresRepo reads campaigns and claims leads in Postgres.
//
// Tables (see migrations/0001_dialer.sql):
// - organizations
// - campaigns (options JSONB)
// - leads (campaign_id, position, call_status)
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	const q = `
SELECT c.id, c.organization_id, o.name, c.user_id, c.status, c.options, c.created_at, c.updated_at
FROM campaigns c
JOIN organizations o ON o.id = c.organization_id
WHERE c.id = $1
`
	var c Campaign
	var options []byte
	if err := r.db.QueryRowContext(ctx, q, campaignID).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.OrganizationName,
		&c.UserID,
		&c.Status,
		&options,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &c.Options); err != nil {
			return Campaign{}, fmt.Errorf("campaigns: decode options for %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func (r *PostgresRepo) GetLead(ctx context.Context, leadID string) (Lead, error) {
	const q = `
SELECT id, campaign_id, phone, call_status, position, created_at, updated_at
FROM leads
WHERE id = $1
`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, leadID))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) FirstLead(ctx context.Context, campaignID string, status LeadStatus) (Lead, bool, error) {
	const q = `
SELECT id, campaign_id, phone, call_status, position, created_at, updated_at
FROM leads
WHERE campaign_id = $1 AND call_status = $2
ORDER BY position, id
LIMIT 1
`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, campaignID, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, false, nil
		}
		return Lead{}, false, err
	}
	return l, true, nil
}

func (r *PostgresRepo) TransitionLead(ctx context.Context, leadID string, from, to LeadStatus) error {
	const q = `
UPDATE leads
SET call_status = $3, updated_at = $4
WHERE id = $1 AND call_status = $2
`
	res, err := r.db.ExecContext(ctx, q, leadID, from, to, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Distinguish a missing lead from a lost race.
	if _, err := r.GetLead(ctx, leadID); err != nil {
		return err
	}
	return ErrLeadStateConflict
}

func (r *PostgresRepo) CountLeads(ctx context.Context, campaignID string) (map[LeadStatus]int, error) {
	const q = `
SELECT call_status, COUNT(*)
FROM leads
WHERE campaign_id = $1
GROUP BY call_status
`
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[LeadStatus]int{}
	for rows.Next() {
		var s LeadStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListLeads(ctx context.Context, campaignID string, status LeadStatus) ([]Lead, error) {
	const q = `
SELECT id, campaign_id, phone, call_status, position, created_at, updated_at
FROM leads
WHERE campaign_id = $1 AND call_status = $2
ORDER BY position, id
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID,
		&l.CampaignID,
		&l.Phone,
		&l.CallStatus,
		&l.Position,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}
