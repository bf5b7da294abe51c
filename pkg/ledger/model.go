package ledger

import "time"

type Account struct {
	UUID      string    `json:"uuid"`
	Balance   int64     `json:"balance"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
