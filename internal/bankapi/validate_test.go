package bankapi

import "testing"

func TestValidatePayloadsAcceptsWellFormedAttachments(t *testing.T) {
	resp := &ChatResponse{
		Cards: []Card{
			{CardNumber: "4111111111111111", CardType: "debit", Status: "active", ExpiryDate: "12/27"},
		},
		Transactions: []Transaction{
			{TransactionID: "tx-1", Date: "2026-08-01", Description: "Coffee", Amount: 4.50, Type: "debit"},
		},
	}
	if warnings := validatePayloads(resp); len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestValidatePayloadsFlagsShortCardNumber(t *testing.T) {
	resp := &ChatResponse{
		Cards: []Card{{CardNumber: "12", CardType: "debit", Status: "active"}},
	}
	warnings := validatePayloads(resp)
	if len(warnings) == 0 {
		t.Fatal("expected a warning for a card number below the minimum length")
	}
}

func TestValidatePayloadsEmptyAttachmentsAreClean(t *testing.T) {
	if warnings := validatePayloads(&ChatResponse{Response: "hi"}); warnings != nil {
		t.Fatalf("warnings = %v", warnings)
	}
}
