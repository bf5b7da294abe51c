package registry

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultyard/pkg/db"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrNotOwner      = errors.New("caller does not own the asset")
)

type AssetRepository interface {
	CreateAsset(ctx context.Context, input Asset) (Asset, error)
	GetAsset(ctx context.Context, id int64) (Asset, error)
	OwnerOf(ctx context.Context, id int64) (string, error)
	TransferOwner(ctx context.Context, id int64, from, to string) error
}

type postgresAssetRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAssetRepository(pool *pgxpool.Pool) AssetRepository {
	return &postgresAssetRepository{pool: pool}
}

func (r *postgresAssetRepository) CreateAsset(ctx context.Context, input Asset) (Asset, error) {
	query := `INSERT INTO registry_assets (owner_uuid, name, metadata_url, created_at)
              VALUES ($1, $2, $3, NOW())
              RETURNING asset_id, owner_uuid, name, metadata_url, created_at`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query, input.OwnerUUID, input.Name, input.MetadataURL)

	var created Asset
	if err := row.Scan(&created.ID, &created.OwnerUUID, &created.Name, &created.MetadataURL, &created.CreatedAt); err != nil {
		return Asset{}, err
	}

	return created, nil
}

func (r *postgresAssetRepository) GetAsset(ctx context.Context, id int64) (Asset, error) {
	query := `SELECT asset_id, owner_uuid, name, metadata_url, created_at
              FROM registry_assets
              WHERE asset_id = $1`

	row := db.Q(ctx, r.pool).QueryRow(ctx, query, id)

	var a Asset
	if err := row.Scan(&a.ID, &a.OwnerUUID, &a.Name, &a.MetadataURL, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrAssetNotFound
		}
		return Asset{}, err
	}

	return a, nil
}

func (r *postgresAssetRepository) OwnerOf(ctx context.Context, id int64) (string, error) {
	row := db.Q(ctx, r.pool).QueryRow(ctx, "SELECT owner_uuid FROM registry_assets WHERE asset_id = $1", id)

	var owner string
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrAssetNotFound
		}
		return "", err
	}

	return owner, nil
}

// TransferOwner flips ownership only if `from` still owns the asset. The
// conditional update is what makes registry transfers all-or-nothing.
func (r *postgresAssetRepository) TransferOwner(ctx context.Context, id int64, from, to string) error {
	cmd, err := db.Q(ctx, r.pool).Exec(ctx,
		"UPDATE registry_assets SET owner_uuid = $1 WHERE asset_id = $2 AND owner_uuid = $3", to, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.OwnerOf(ctx, id); err != nil {
			return err
		}
		return ErrNotOwner
	}
	return nil
}
