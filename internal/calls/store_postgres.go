package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campaign-dialer/pkg/utils"
)

// activeCodeIndex is the partial unique index that makes call codes unique
// among unresolved calls (migrations/0001_dialer.sql).
const activeCodeIndex = "calls_active_call_code_idx"

// PostgresStore implements Store on the calls and call_sessions tables.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

func (s *PostgresStore) Persist(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	now := s.clock().UTC()
	if rec.Call.CreatedAt.IsZero() {
		rec.Call.CreatedAt = now
	}
	rec.Call.UpdatedAt = rec.Call.CreatedAt
	if rec.Session.CreatedAt.IsZero() {
		rec.Session.CreatedAt = now
	}

	settings, err := json.Marshal(rec.Session.Settings)
	if err != nil {
		return fmt.Errorf("calls: encode settings: %w", err)
	}
	webhooks, err := json.Marshal(rec.Session.Webhooks)
	if err != nil {
		return fmt.Errorf("calls: encode webhooks: %w", err)
	}

	err = utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertCall(ctx, tx, rec.Call); err != nil {
			return err
		}
		return insertSession(ctx, tx, rec.Session, settings, webhooks)
	})
	if name, ok := utils.UniqueViolation(err); ok {
		if name == activeCodeIndex {
			return ErrDuplicateCode
		}
		return ErrDuplicateCall
	}
	return err
}

func insertCall(ctx context.Context, tx *sql.Tx, c Call) error {
	const q = `
INSERT INTO calls (
  id, user_id, campaign_id, lead_id, provider_call_id, number, status, call_code, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := tx.ExecContext(ctx, q,
		c.ID,
		c.UserID,
		c.CampaignID,
		c.LeadID,
		c.ProviderCallID,
		c.Number,
		c.Status,
		c.CallCode,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func insertSession(ctx context.Context, tx *sql.Tx, cs CallSession, settings, webhooks []byte) error {
	const q = `
INSERT INTO call_sessions (id, provider_call_id, settings, webhooks, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	_, err := tx.ExecContext(ctx, q, cs.ID, cs.ProviderCallID, settings, webhooks, cs.CreatedAt)
	return err
}

func (s *PostgresStore) CodeInUse(ctx context.Context, code int) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM calls
  WHERE call_code = $1
    AND status NOT IN ('completed','busy','failed','no-answer','canceled')
)
`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const selectCall = `
SELECT id, user_id, campaign_id, lead_id, provider_call_id, number, status, call_code, created_at, updated_at
FROM calls
`

func (s *PostgresStore) FindByProviderID(ctx context.Context, providerCallID string) (Call, error) {
	c, err := scanCall(s.db.QueryRowContext(ctx, selectCall+"WHERE provider_call_id = $1", providerCallID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) SessionByProviderID(ctx context.Context, providerCallID string) (CallSession, error) {
	const q = `
SELECT id, provider_call_id, settings, webhooks, created_at
FROM call_sessions
WHERE provider_call_id = $1
`
	var cs CallSession
	var settings, webhooks []byte
	if err := s.db.QueryRowContext(ctx, q, providerCallID).Scan(
		&cs.ID,
		&cs.ProviderCallID,
		&settings,
		&webhooks,
		&cs.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, err
	}
	if err := json.Unmarshal(settings, &cs.Settings); err != nil {
		return CallSession{}, fmt.Errorf("calls: decode settings: %w", err)
	}
	if err := json.Unmarshal(webhooks, &cs.Webhooks); err != nil {
		return CallSession{}, fmt.Errorf("calls: decode webhooks: %w", err)
	}
	return cs, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, providerCallID string, status CallStatus) (Call, error) {
	const q = `
UPDATE calls
SET status = $2, updated_at = $3
WHERE provider_call_id = $1
  AND status NOT IN ('completed','busy','failed','no-answer','canceled')
RETURNING id, user_id, campaign_id, lead_id, provider_call_id, number, status, call_code, created_at, updated_at
`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, providerCallID, status, s.clock().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		// Either unknown or already terminal; the read tells which.
		return s.FindByProviderID(ctx, providerCallID)
	}
	return c, err
}

func (s *PostgresStore) ListByCampaign(ctx context.Context, campaignID string) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, selectCall+"WHERE campaign_id = $1 ORDER BY created_at", campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		var c Call
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.CampaignID, &c.LeadID, &c.ProviderCallID,
			&c.Number, &c.Status, &c.CallCode, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCall(row *sql.Row) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.CampaignID,
		&c.LeadID,
		&c.ProviderCallID,
		&c.Number,
		&c.Status,
		&c.CallCode,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
