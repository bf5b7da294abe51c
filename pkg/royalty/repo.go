package royalty

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultyard/pkg/db"
)

var ErrPolicyNotFound = errors.New("royalty policy not found")

type Policy struct {
	AssetID       int64  `json:"asset_id"`
	RecipientUUID string `json:"recipient_uuid"`
	Bps           int    `json:"bps"`
}

type PolicyRepository interface {
	UpsertPolicy(ctx context.Context, p Policy) error
	GetPolicy(ctx context.Context, assetID int64) (Policy, error)
}

type postgresPolicyRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &postgresPolicyRepository{pool: pool}
}

func (r *postgresPolicyRepository) UpsertPolicy(ctx context.Context, p Policy) error {
	query := `INSERT INTO royalty_policies (asset_id, recipient_uuid, bps)
              VALUES ($1, $2, $3)
              ON CONFLICT (asset_id) DO UPDATE SET recipient_uuid = EXCLUDED.recipient_uuid, bps = EXCLUDED.bps`

	_, err := db.Q(ctx, r.pool).Exec(ctx, query, p.AssetID, p.RecipientUUID, p.Bps)
	return err
}

func (r *postgresPolicyRepository) GetPolicy(ctx context.Context, assetID int64) (Policy, error) {
	row := db.Q(ctx, r.pool).QueryRow(ctx,
		"SELECT asset_id, recipient_uuid, bps FROM royalty_policies WHERE asset_id = $1", assetID)

	var p Policy
	if err := row.Scan(&p.AssetID, &p.RecipientUUID, &p.Bps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, ErrPolicyNotFound
		}
		return Policy{}, err
	}

	return p, nil
}
