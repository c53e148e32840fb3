package checkout

import "github.com/sanxiaozi/fulfillment/internal/orders"

func subtotal(items []orders.LineItem) int {
	sum := 0
	for _, it := range items {
		sum += it.Price * it.Qty
	}
	return sum
}

// splitByTag partitions normalized items into the immediate group and
// the lead-time group.
func splitByTag(items []orders.LineItem, leadTag string) (immediate, lead []orders.LineItem) {
	for _, it := range items {
		if it.Tag == leadTag {
			lead = append(lead, it)
		} else {
			immediate = append(immediate, it)
		}
	}
	return immediate, lead
}

// shippingFee is computed once from the full-cart subtotal and attached
// to the primary group only.
func (s *Service) shippingFee(cartSubtotal int, shipMethod string) int {
	if cartSubtotal == 0 || cartSubtotal >= s.FreeShipThreshold {
		return 0
	}
	if shipMethod == "home" {
		return s.ShipFeeHome
	}
	return s.ShipFeeCVS
}
