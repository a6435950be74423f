package attribution

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// flexString decodes a JSON string or number into its text form. Shopify
// sends IDs as numbers and prices as strings, but not consistently across
// API versions.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) Float() float64 {
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return 0
	}
	return f
}

type noteAttribute struct {
	Name  string     `json:"name"`
	Value flexString `json:"value"`
}

type discountCode struct {
	Code string `json:"code"`
}

// Order is the subset of a Shopify order webhook attribution reads.
type Order struct {
	ID             flexString      `json:"id"`
	Name           string          `json:"name"`
	TotalPrice     flexString      `json:"total_price"`
	Currency       string          `json:"currency"`
	Email          string          `json:"email"`
	CreatedAt      string          `json:"created_at"`
	Note           string          `json:"note"`
	NoteAttributes []noteAttribute `json:"note_attributes"`
	DiscountCodes  []discountCode  `json:"discount_codes"`
	LandingSite    string          `json:"landing_site"`
}

// CreatedTime parses CreatedAt, returning nil when it is missing or malformed.
func (o *Order) CreatedTime() *time.Time {
	if o.CreatedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, o.CreatedAt)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// Refund is the subset of a Shopify refund webhook attribution reads.
type Refund struct {
	ID      flexString `json:"id"`
	OrderID flexString `json:"order_id"`
}
