package custodian

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultyard/pkg/db"
)

var (
	ErrAlreadyLocked = errors.New("asset is already under custody")
	ErrNotLocked     = errors.New("asset is not under custody")
)

type CustodyRepository interface {
	SetTrust(ctx context.Context, callerID string, enabled bool) error
	IsTrusted(ctx context.Context, callerID string) (bool, error)
	CreateRecord(ctx context.Context, assetID int64, depositor string) error
	GetRecord(ctx context.Context, assetID int64) (CustodyRecord, error)
	DeleteRecord(ctx context.Context, assetID int64) error
	RecordExists(ctx context.Context, assetID int64) (bool, error)
}

type postgresCustodyRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCustodyRepository(pool *pgxpool.Pool) CustodyRepository {
	return &postgresCustodyRepository{pool: pool}
}

func (r *postgresCustodyRepository) SetTrust(ctx context.Context, callerID string, enabled bool) error {
	query := `INSERT INTO custodian_trust (caller_id, enabled, granted_at)
              VALUES ($1, $2, NOW())
              ON CONFLICT (caller_id) DO UPDATE SET enabled = EXCLUDED.enabled, granted_at = NOW()`

	_, err := db.Q(ctx, r.pool).Exec(ctx, query, callerID, enabled)
	return err
}

func (r *postgresCustodyRepository) IsTrusted(ctx context.Context, callerID string) (bool, error) {
	row := db.Q(ctx, r.pool).QueryRow(ctx, "SELECT enabled FROM custodian_trust WHERE caller_id = $1", callerID)

	var enabled bool
	if err := row.Scan(&enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return enabled, nil
}

func (r *postgresCustodyRepository) CreateRecord(ctx context.Context, assetID int64, depositor string) error {
	_, err := db.Q(ctx, r.pool).Exec(ctx,
		"INSERT INTO custody_records (asset_id, depositor_uuid, locked_at) VALUES ($1, $2, NOW())", assetID, depositor)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyLocked
		}
		return err
	}
	return nil
}

func (r *postgresCustodyRepository) GetRecord(ctx context.Context, assetID int64) (CustodyRecord, error) {
	row := db.Q(ctx, r.pool).QueryRow(ctx,
		"SELECT asset_id, depositor_uuid, locked_at FROM custody_records WHERE asset_id = $1", assetID)

	var rec CustodyRecord
	if err := row.Scan(&rec.AssetID, &rec.DepositorUUID, &rec.LockedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustodyRecord{}, ErrNotLocked
		}
		return CustodyRecord{}, err
	}

	return rec, nil
}

func (r *postgresCustodyRepository) DeleteRecord(ctx context.Context, assetID int64) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx, "DELETE FROM custody_records WHERE asset_id = $1", assetID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotLocked
	}
	return nil
}

func (r *postgresCustodyRepository) RecordExists(ctx context.Context, assetID int64) (bool, error) {
	row := db.Q(ctx, r.pool).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM custody_records WHERE asset_id = $1)", assetID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}
