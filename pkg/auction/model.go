package auction

import "time"

type Auction struct {
	ID            int64     `json:"id"`
	AssetID       int64     `json:"asset_id"`
	SellerUUID    string    `json:"seller_uuid"`
	MinBid        int64     `json:"min_bid"`
	EndTime       time.Time `json:"end_time"`
	HighestBidder string    `json:"highest_bidder,omitempty"`
	HighestBid    int64     `json:"highest_bid"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasBids reports whether at least one bid was accepted. MinBid is
// positive, so a zero highest bid means no bidder yet.
func (a Auction) HasBids() bool {
	return a.HighestBid > 0
}

// Settlement is the journal row written when an auction resolves. A
// no-bid finalization records a zero price with an empty winner.
type Settlement struct {
	ID             int64     `json:"id"`
	AuctionID      int64     `json:"auction_id"`
	AssetID        int64     `json:"asset_id"`
	SellerUUID     string    `json:"seller_uuid"`
	WinnerUUID     string    `json:"winner_uuid,omitempty"`
	Price          int64     `json:"price"`
	PlatformFee    int64     `json:"platform_fee"`
	RoyaltyPaid    int64     `json:"royalty_paid"`
	SellerProceeds int64     `json:"seller_proceeds"`
	SettledAt      time.Time `json:"settled_at"`
}
