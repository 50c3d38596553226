package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Response is a processor document (API response or webhook payload) with the
// fields we probe for pulled out. Everything else stays opaque in Raw.
type Response struct {
	Raw           json.RawMessage
	CheckoutURL   string
	TransactionID string
	Status        string
	Reference     string
}

// ParseDocument reads an API response. The transaction id is only taken from data.
func ParseDocument(raw []byte) (*Response, error) {
	resp, err := parse(raw, false)
	if err != nil {
		return nil, fmt.Errorf("ParseDocument: %w", err)
	}
	return resp, nil
}

// ParseCallback reads a webhook payload, which may carry id and transaction_id at
// the top level.
func ParseCallback(raw []byte) (*Response, error) {
	resp, err := parse(raw, true)
	if err != nil {
		return nil, fmt.Errorf("ParseCallback: %w", err)
	}
	return resp, nil
}

func parse(raw []byte, callback bool) (*Response, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}
	if doc == nil {
		return nil, fmt.Errorf("document is not a JSON object")
	}

	data, _ := doc["data"].(map[string]any)

	txID := firstString(data, "id", "transaction_id")
	if callback {
		txID = first(txID, firstString(doc, "id", "transaction_id"))
	}

	return &Response{
		Raw:           json.RawMessage(raw),
		CheckoutURL:   firstString(data, "checkout_url", "authorization_url", "payment_url"),
		TransactionID: txID,
		Status:        first(firstString(data, "status"), firstString(doc, "status")),
		Reference:     first(firstString(data, "tx_ref", "reference"), firstString(doc, "tx_ref", "trx_ref", "reference")),
	}, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// stringify accepts the id shapes providers use: strings and numbers.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
