package bankapi

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// The backend contract for structured payloads is loose, so mismatches are
// reported as warnings for the log rather than rejected: the widgets render
// whatever arrived.

const cardsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["card_number", "card_type", "status"],
		"properties": {
			"card_number": {"type": "string", "minLength": 4},
			"card_type":   {"type": "string"},
			"status":      {"type": "string"},
			"expiry_date": {"type": "string"}
		}
	}
}`

const transactionsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["transaction_id", "date", "description", "amount", "type"],
		"properties": {
			"transaction_id": {"type": "string"},
			"date":           {"type": "string"},
			"description":    {"type": "string"},
			"amount":         {"type": "number"},
			"type":           {"type": "string"}
		}
	}
}`

// validatePayloads checks the structured attachments of a chat response
// against their schemas and returns one warning string per violation.
func validatePayloads(resp *ChatResponse) []string {
	var warnings []string
	if len(resp.Cards) > 0 {
		warnings = append(warnings, validateAgainst("cards", cardsSchema, resp.Cards)...)
	}
	if len(resp.Transactions) > 0 {
		warnings = append(warnings, validateAgainst("transactions", transactionsSchema, resp.Transactions)...)
	}
	return warnings
}

func validateAgainst(name, schema string, doc any) []string {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", name, err)}
	}
	if result.Valid() {
		return nil
	}
	var warnings []string
	for _, resErr := range result.Errors() {
		warnings = append(warnings, fmt.Sprintf("%s: %s", name, resErr.String()))
	}
	return warnings
}
