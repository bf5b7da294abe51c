package notify

import (
	"fmt"
	"log"
)

// Notifier formats and sends the settlement notices the engine produces.
// Notices go out after the settlement has committed; a delivery failure is
// logged and never propagated back into the engine.
type Notifier interface {
	Outbid(toEmail string, assetID, refundable int64)
	LoanLiquidated(toEmail string, assetID int64)
	AuctionWon(toEmail string, assetID, price int64)
}

type emailNotifier struct {
	email EmailService
}

func NewNotifier(email EmailService) Notifier {
	return &emailNotifier{email: email}
}

func (n *emailNotifier) Outbid(toEmail string, assetID, refundable int64) {
	if toEmail == "" {
		return
	}
	subject := fmt.Sprintf("You have been outbid on asset #%d", assetID)
	text := fmt.Sprintf("A higher bid was placed on asset #%d. Your escrowed bid of %d is now withdrawable.", assetID, refundable)
	html := fmt.Sprintf("<p>A higher bid was placed on asset <b>#%d</b>. Your escrowed bid of <b>%d</b> is now withdrawable.</p>", assetID, refundable)
	if err := n.email.SendEmail(subject, toEmail, text, html); err != nil {
		log.Printf("outbid notice for asset %d failed: %v", assetID, err)
	}
}

func (n *emailNotifier) LoanLiquidated(toEmail string, assetID int64) {
	if toEmail == "" {
		return
	}
	subject := fmt.Sprintf("Loan collateral liquidated for asset #%d", assetID)
	text := fmt.Sprintf("The repayment deadline for the loan against asset #%d passed and the collateral has been liquidated.", assetID)
	html := fmt.Sprintf("<p>The repayment deadline for the loan against asset <b>#%d</b> passed and the collateral has been liquidated.</p>", assetID)
	if err := n.email.SendEmail(subject, toEmail, text, html); err != nil {
		log.Printf("liquidation notice for asset %d failed: %v", assetID, err)
	}
}

func (n *emailNotifier) AuctionWon(toEmail string, assetID, price int64) {
	if toEmail == "" {
		return
	}
	subject := fmt.Sprintf("You won the auction for asset #%d", assetID)
	text := fmt.Sprintf("Your bid of %d won the auction for asset #%d. The asset has been released to you.", price, assetID)
	html := fmt.Sprintf("<p>Your bid of <b>%d</b> won the auction for asset <b>#%d</b>. The asset has been released to you.</p>", price, assetID)
	if err := n.email.SendEmail(subject, toEmail, text, html); err != nil {
		log.Printf("auction-won notice for asset %d failed: %v", assetID, err)
	}
}

// NoopNotifier is used when no email credentials are configured.
type NoopNotifier struct{}

func (NoopNotifier) Outbid(string, int64, int64)     {}
func (NoopNotifier) LoanLiquidated(string, int64)    {}
func (NoopNotifier) AuctionWon(string, int64, int64) {}
