package registry

import "time"

type Asset struct {
	ID          int64     `json:"id"`
	OwnerUUID   string    `json:"owner_uuid"`
	Name        string    `json:"name"`
	MetadataURL string    `json:"metadata_url"`
	CreatedAt   time.Time `json:"created_at"`
}
