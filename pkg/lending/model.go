package lending

import "time"

type Loan struct {
	ID           int64     `json:"id"`
	AssetID      int64     `json:"asset_id"`
	BorrowerUUID string    `json:"borrower_uuid"`
	Principal    int64     `json:"principal"`
	Repaid       int64     `json:"repaid"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	Deadline     time.Time `json:"deadline"`
}

// Outstanding is the balance still owed on the loan.
func (l Loan) Outstanding() int64 {
	return l.Principal - l.Repaid
}

type InstallmentSchedule struct {
	LoanID       int64     `json:"loan_id"`
	Total        int64     `json:"total"`
	Paid         int64     `json:"paid"`
	Installments int       `json:"installments"`
	CreatedAt    time.Time `json:"created_at"`
	Deadline     time.Time `json:"deadline"`
}

type Payment struct {
	ID     int64     `json:"id"`
	LoanID int64     `json:"loan_id"`
	Amount int64     `json:"amount"`
	Late   bool      `json:"late"`
	PaidAt time.Time `json:"paid_at"`
}

type InstallmentStatus struct {
	Loan        Loan                `json:"loan"`
	Schedule    InstallmentSchedule `json:"schedule"`
	Payments    []Payment           `json:"payments"`
	Outstanding int64               `json:"outstanding"`
}

// RepayResult reports what a repayment actually did: the applied amount
// after capping, whether it was late, and whether it settled the loan.
type RepayResult struct {
	Applied int64 `json:"applied"`
	Late    bool  `json:"late"`
	Settled bool  `json:"settled"`
}
