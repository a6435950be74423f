package attribution

import (
	"context"
	"net/url"
	"strings"

	"github.com/goyoulink/affiliate-tracker/internal/domain"
	"github.com/goyoulink/affiliate-tracker/internal/referral"
)

// refAttributeNames are the cart attribute names that carry a referral code.
var refAttributeNames = map[string]bool{
	"ref":           true,
	"referral_code": true,
	"affiliate":     true,
}

// RefCodeLookup resolves ref codes to affiliates.
type RefCodeLookup interface {
	GetByRefCode(ctx context.Context, refCode string) (*domain.Affiliate, error)
}

// ExtractRefCode finds the referral code an order was placed with, or ""
// when it carries none. Discount codes only count when lookup knows them.
func ExtractRefCode(ctx context.Context, o *Order, lookup RefCodeLookup) string {
	for _, attr := range o.NoteAttributes {
		if refAttributeNames[attr.Name] {
			return string(attr.Value)
		}
	}

	for _, d := range o.DiscountCodes {
		if d.Code == "" {
			continue
		}
		if a, err := lookup.GetByRefCode(ctx, d.Code); err == nil && a != nil {
			return d.Code
		}
	}

	for _, part := range strings.Fields(o.Note) {
		if code, ok := strings.CutPrefix(part, "ref:"); ok {
			return code
		}
	}

	if strings.Contains(o.LandingSite, "ref=") {
		if u, err := url.Parse(o.LandingSite); err == nil {
			if code, ok := referral.ExtractFromLocation(u, "ref"); ok {
				return code
			}
		}
	}
	return ""
}
