package admin

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrNotAdmin = errors.New("caller is not the administrator")

// Authorizer is the administrative capability consumed by the settlement
// services. Operations that move custody or value on behalf of the
// platform (trust grants, liquidation, forced cancellation, deposits)
// must pass through it.
type Authorizer interface {
	Authorize(callerUUID, key string) error
}

// Gate authorizes a single configured administrator identity. The API key
// is never stored in clear; only its bcrypt hash is configured.
type Gate struct {
	adminUUID string
	keyHash   []byte
}

func NewGate(adminUUID string, keyHash []byte) *Gate {
	return &Gate{adminUUID: adminUUID, keyHash: keyHash}
}

func (g *Gate) Authorize(callerUUID, key string) error {
	if callerUUID == "" || callerUUID != g.adminUUID {
		return ErrNotAdmin
	}
	if err := bcrypt.CompareHashAndPassword(g.keyHash, []byte(key)); err != nil {
		return ErrNotAdmin
	}
	return nil
}

// AdminUUID reports the configured administrator identity. Forfeiture
// paths use it as the designated collateral recipient when none is given.
func (g *Gate) AdminUUID() string {
	return g.adminUUID
}
