package testhelpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var uniqueCounter int64

func nextSuffix() int64 {
	return atomic.AddInt64(&uniqueCounter, 1)
}

// CreateTestAccount inserts a funded ledger account and returns its UUID.
func CreateTestAccount(t *testing.T, db *pgxpool.Pool, balance int64) string {
	t.Helper()

	ctx := context.Background()
	id := uuid.NewString()
	email := fmt.Sprintf("test-account-%d@example.com", nextSuffix())

	_, err := db.Exec(ctx, "INSERT INTO ledger_accounts (account_uuid, balance, email) VALUES ($1, $2, $3)", id, balance, email)
	require.NoError(t, err)
	return id
}

// CreateTestAsset registers an asset owned by ownerUUID and returns its ID.
func CreateTestAsset(t *testing.T, db *pgxpool.Pool, ownerUUID string) int64 {
	t.Helper()

	ctx := context.Background()
	name := fmt.Sprintf("test-asset-%d", nextSuffix())

	var id int64
	err := db.QueryRow(ctx,
		"INSERT INTO registry_assets (owner_uuid, name, metadata_url) VALUES ($1, $2, '') RETURNING asset_id",
		ownerUUID, name).Scan(&id)
	require.NoError(t, err)
	return id
}

// GrantTestTrust marks a caller identity as trusted by the custodian.
func GrantTestTrust(t *testing.T, db *pgxpool.Pool, callerID string) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Exec(ctx,
		"INSERT INTO custodian_trust (caller_id, enabled) VALUES ($1, TRUE) ON CONFLICT (caller_id) DO UPDATE SET enabled = TRUE",
		callerID)
	require.NoError(t, err)
}

// SetTestAllowance lets spender pull up to amount from owner's balance.
func SetTestAllowance(t *testing.T, db *pgxpool.Pool, owner, spender string, amount int64) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Exec(ctx,
		`INSERT INTO ledger_allowances (owner_uuid, spender_uuid, amount) VALUES ($1, $2, $3)
         ON CONFLICT (owner_uuid, spender_uuid) DO UPDATE SET amount = EXCLUDED.amount`,
		owner, spender, amount)
	require.NoError(t, err)
}
