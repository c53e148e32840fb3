package catalog

import "time"

type Variant struct {
	SpecKey   string
	SpecLabel string
	Stock     int
}

type Product struct {
	ID        string
	Name      string
	Price     int
	PriceNote string
	Tag       string
	Stock     int
	Variants  []Variant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Variant returns the variant for key, if the product carries one.
func (p *Product) Variant(key string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SpecKey == key {
			return v, true
		}
	}
	return Variant{}, false
}
