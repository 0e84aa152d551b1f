package bankapi

// Card is a snapshot of one card as the backend reports it. Only the last
// four digits of the number are ever shown to the user.
type Card struct {
	CardNumber string `json:"card_number"`
	CardType   string `json:"card_type"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

// Transaction is one ledger entry. Direction is not encoded explicitly; the
// Type label carries keywords like "credit" or "debit".
type Transaction struct {
	TransactionID string  `json:"transaction_id"`
	Date          string  `json:"date"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	Type          string  `json:"type"`
}

// Customer is the profile returned by a successful identity verification.
type Customer struct {
	CustomerID    string  `json:"customer_id"`
	Name          string  `json:"name"`
	AccountNumber string  `json:"account_number"`
	Balance       float64 `json:"balance"`
	Address       string  `json:"address,omitempty"`
	Cards         []Card  `json:"cards,omitempty"`
}

// ChatRequest is the body of one text chat turn.
type ChatRequest struct {
	Message    string `json:"message"`
	CustomerID string `json:"customer_id"`
	SessionID  string `json:"session_id"`
	Verified   bool   `json:"verified"`
}

// ChatResponse carries the agent reply plus any structured banking payloads.
type ChatResponse struct {
	Response             string        `json:"response"`
	Flow                 string        `json:"flow"`
	RequiresVerification bool          `json:"requires_verification,omitempty"`
	Action               string        `json:"action,omitempty"`
	Balance              *float64      `json:"balance,omitempty"`
	Cards                []Card        `json:"cards,omitempty"`
	Transactions         []Transaction `json:"transactions,omitempty"`
	SessionID            string        `json:"session_id"`
}

// VerifyRequest is the customer id + PIN pair sent for identity verification.
type VerifyRequest struct {
	CustomerID string `json:"customer_id"`
	PIN        string `json:"pin"`
}

// VerifyResponse reports whether verification succeeded. Message explains a
// rejection; Customer is present only on success.
type VerifyResponse struct {
	Verified bool      `json:"verified"`
	Customer *Customer `json:"customer,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// TranscribeResponse is the backend's transcription of an uploaded clip.
type TranscribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// VoiceChatRequest is the body of one voice chat turn.
type VoiceChatRequest struct {
	Message    string `json:"message"`
	CustomerID string `json:"customer_id"`
	Verified   bool   `json:"verified"`
	SessionID  string `json:"session_id,omitempty"`
}

// VoiceChatResponse is the reply to a voice chat turn.
type VoiceChatResponse struct {
	TextResponse         string `json:"text_response"`
	SessionID            string `json:"session_id"`
	RequiresVerification bool   `json:"requires_verification"`
	Flow                 string `json:"flow"`
}
