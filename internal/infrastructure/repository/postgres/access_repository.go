package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dugouthq/lineup-api/internal/domain/access"
)

type teamAccessTableModel struct {
	TeamID    string     `db:"team_id"`
	Status    string     `db:"status"`
	GrantedAt *time.Time `db:"granted_at"`
	ExpiresAt *time.Time `db:"expires_at"`
}

type paymentEventTableModel struct {
	ProviderKey string    `db:"provider_key"`
	TeamID      string    `db:"team_id"`
	UserID      string    `db:"user_id"`
	AmountCents int64     `db:"amount_cents"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	PaidAt      time.Time `db:"paid_at"`
}

type promoCodeTableModel struct {
	ID             string     `db:"id"`
	Code           string     `db:"code"`
	IsActive       bool       `db:"is_active"`
	ExpiresAt      *time.Time `db:"expires_at"`
	MaxUses        *int       `db:"max_uses"`
	MaxUsesPerUser int        `db:"max_uses_per_user"`
	UseCount       int        `db:"use_count"`
}

// AccessRepository persists the access ledger. Compound writes run in one
// transaction so a payment event can never land without its grant and a
// redemption can never outrun the code's global cap.
type AccessRepository struct {
	db *sqlx.DB
}

func NewAccessRepository(db *sqlx.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) GetTeamAccess(ctx context.Context, teamID string) (access.TeamAccess, bool, error) {
	const query = `SELECT team_id, status, granted_at, expires_at FROM team_access WHERE team_id = $1`

	var row teamAccessTableModel
	if err := r.db.GetContext(ctx, &row, query, teamID); err != nil {
		if isNotFound(err) {
			return access.TeamAccess{}, false, nil
		}
		return access.TeamAccess{}, false, fmt.Errorf("get team access: %w", err)
	}

	return access.TeamAccess{
		TeamID:    row.TeamID,
		Status:    access.Status(row.Status),
		GrantedAt: row.GrantedAt,
		ExpiresAt: row.ExpiresAt,
	}, true, nil
}

func (r *AccessRepository) GetPaymentEventByProviderKey(ctx context.Context, providerKey string) (access.PaymentEvent, bool, error) {
	const query = `SELECT provider_key, team_id, user_id, amount_cents, currency, status, paid_at
FROM payment_events WHERE provider_key = $1`

	var row paymentEventTableModel
	if err := r.db.GetContext(ctx, &row, query, providerKey); err != nil {
		if isNotFound(err) {
			return access.PaymentEvent{}, false, nil
		}
		return access.PaymentEvent{}, false, fmt.Errorf("get payment event: %w", err)
	}

	return access.PaymentEvent{
		ProviderKey: row.ProviderKey,
		TeamID:      row.TeamID,
		UserID:      row.UserID,
		AmountCents: row.AmountCents,
		Currency:    row.Currency,
		Status:      row.Status,
		PaidAt:      row.PaidAt,
	}, true, nil
}

func (r *AccessRepository) RecordPaymentAndGrant(ctx context.Context, event access.PaymentEvent, grant *access.Grant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx record payment: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertEvent = `INSERT INTO payment_events (provider_key, team_id, user_id, amount_cents, currency, status, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.ExecContext(ctx, insertEvent,
		event.ProviderKey, event.TeamID, event.UserID, event.AmountCents, event.Currency, event.Status, event.PaidAt,
	); err != nil {
		if isUniqueViolation(err) {
			return access.ErrDuplicateProviderKey
		}
		return fmt.Errorf("insert payment event: %w", err)
	}

	if grant != nil {
		if err := applyGrantTx(ctx, tx, *grant); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record payment tx: %w", err)
	}
	return nil
}

func (r *AccessRepository) GetPromoCodeByCode(ctx context.Context, code string) (access.PromoCode, bool, error) {
	const query = `SELECT id, code, is_active, expires_at, max_uses, max_uses_per_user, use_count
FROM promo_codes WHERE lower(code) = lower($1)`

	var row promoCodeTableModel
	if err := r.db.GetContext(ctx, &row, query, code); err != nil {
		if isNotFound(err) {
			return access.PromoCode{}, false, nil
		}
		return access.PromoCode{}, false, fmt.Errorf("get promo code: %w", err)
	}

	return access.PromoCode{
		ID:             row.ID,
		Code:           row.Code,
		IsActive:       row.IsActive,
		ExpiresAt:      row.ExpiresAt,
		MaxUses:        row.MaxUses,
		MaxUsesPerUser: row.MaxUsesPerUser,
		UseCount:       row.UseCount,
	}, true, nil
}

func (r *AccessRepository) CountRedemptions(ctx context.Context, userID, promoCodeID, teamID string) (int, error) {
	const query = `SELECT COUNT(*) FROM promo_redemptions WHERE user_id = $1 AND promo_code_id = $2 AND team_id = $3`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, promoCodeID, teamID); err != nil {
		return 0, fmt.Errorf("count promo redemptions: %w", err)
	}
	return count, nil
}

func (r *AccessRepository) RedeemPromoAndGrant(ctx context.Context, redemption access.PromoRedemption, grant *access.Grant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx redeem promo: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// The grant goes first so racing redemptions for the same team
	// serialize on the team_access row: whichever transaction wins leaves
	// an active row, and the loser's guarded upsert matches nothing.
	if grant != nil {
		if err := applyGrantIfInactiveTx(ctx, tx, *grant); err != nil {
			return err
		}
	}

	// The conditional update re-checks the global cap under the row lock,
	// so two racing redemptions cannot both take the last use.
	const takeUse = `UPDATE promo_codes
SET use_count = use_count + 1
WHERE id = $1 AND (max_uses IS NULL OR use_count < max_uses)`

	result, err := tx.ExecContext(ctx, takeUse, redemption.PromoCodeID)
	if err != nil {
		return fmt.Errorf("increment promo use count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment promo use count rows affected: %w", err)
	}
	if affected == 0 {
		return access.ErrUseLimitReached
	}

	const insertRedemption = `INSERT INTO promo_redemptions (id, user_id, promo_code_id, team_id, redeemed_at)
VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.ExecContext(ctx, insertRedemption,
		redemption.ID, redemption.UserID, redemption.PromoCodeID, redemption.TeamID, redemption.RedeemedAt,
	); err != nil {
		return fmt.Errorf("insert promo redemption: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem promo tx: %w", err)
	}
	return nil
}

// applyGrantIfInactiveTx upserts the grant only while the team's current
// access is absent, never granted, or already lapsed at the grant instant.
// An unexpired active row makes the upsert match nothing and the caller
// gets ErrAccessAlreadyActive instead of a double grant.
func applyGrantIfInactiveTx(ctx context.Context, tx *sqlx.Tx, grant access.Grant) error {
	const query = `INSERT INTO team_access (team_id, status, granted_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (team_id)
DO UPDATE SET
    status = EXCLUDED.status,
    granted_at = EXCLUDED.granted_at,
    expires_at = EXCLUDED.expires_at
WHERE team_access.status NOT IN ('paid_active', 'promo_active')
   OR (team_access.expires_at IS NOT NULL AND team_access.expires_at <= EXCLUDED.granted_at)`

	result, err := tx.ExecContext(ctx, query, grant.TeamID, string(grant.Status), grant.GrantedAt, grant.ExpiresAt)
	if err != nil {
		return fmt.Errorf("apply guarded access grant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply guarded access grant rows affected: %w", err)
	}
	if affected == 0 {
		return access.ErrAccessAlreadyActive
	}
	return nil
}

func applyGrantTx(ctx context.Context, tx *sqlx.Tx, grant access.Grant) error {
	const query = `INSERT INTO team_access (team_id, status, granted_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (team_id)
DO UPDATE SET
    status = EXCLUDED.status,
    granted_at = EXCLUDED.granted_at,
    expires_at = EXCLUDED.expires_at`

	if _, err := tx.ExecContext(ctx, query, grant.TeamID, string(grant.Status), grant.GrantedAt, grant.ExpiresAt); err != nil {
		return fmt.Errorf("apply access grant: %w", err)
	}
	return nil
}
