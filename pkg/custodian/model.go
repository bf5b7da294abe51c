package custodian

import "time"

// CustodyRecord exists iff the asset is physically held by the custodian.
// At most one record per asset id.
type CustodyRecord struct {
	AssetID       int64     `json:"asset_id"`
	DepositorUUID string    `json:"depositor_uuid"`
	LockedAt      time.Time `json:"locked_at"`
}
