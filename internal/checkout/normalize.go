package checkout

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sanxiaozi/fulfillment/internal/orders"
)

// CartLine is the untrusted client shape. Price and name are looked up
// server-side and never taken from the request.
type CartLine struct {
	ProductID string `json:"productId"`
	SpecKey   string `json:"specKey,omitempty"`
	Qty       int    `json:"qty"`
}

type Customer struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"required"`
	LineID  string `json:"lineId"`
	Address string `json:"address"`
	Ship    string `json:"ship"`
	Pay     string `json:"pay"`
	Note    string `json:"note"`
}

var validate = validator.New()

func validateCustomer(c Customer) error {
	if err := validate.Struct(c); err != nil {
		return ErrMissingCustomerField
	}
	if !emailOK(c.Email) {
		return &InvalidEmailError{Email: c.Email}
	}
	return nil
}

// emailOK wants exactly one "@" with a non-empty local part and domain.
func emailOK(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// normalize rebuilds cart lines from catalog truth. Read-only; the
// whole request fails on the first bad line.
func (s *Service) normalize(ctx context.Context, lines []CartLine) ([]orders.LineItem, error) {
	if len(lines) == 0 {
		return nil, &InvalidItemError{}
	}

	seen := map[string]bool{}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	products, err := s.Catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]orders.LineItem, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || l.Qty <= 0 {
			return nil, &InvalidItemError{ProductID: l.ProductID, SpecKey: l.SpecKey, Qty: l.Qty}
		}

		item := orders.LineItem{
			ProductID: l.ProductID,
			SpecKey:   l.SpecKey,
			Name:      p.Name,
			Price:     p.Price,
			Qty:       l.Qty,
			Tag:       p.Tag,
		}
		if len(p.Variants) > 0 {
			v, ok := p.Variant(l.SpecKey)
			if !ok {
				return nil, &InvalidItemError{ProductID: l.ProductID, SpecKey: l.SpecKey, Qty: l.Qty}
			}
			item.SpecLabel = v.SpecLabel
		} else if l.SpecKey != "" {
			return nil, &InvalidItemError{ProductID: l.ProductID, SpecKey: l.SpecKey, Qty: l.Qty}
		}
		out = append(out, item)
	}
	return out, nil
}
