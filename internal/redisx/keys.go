package redisx

import "time"

const (
	// Payment-status cache for the result page: paystatus:{payment_ref}
	KeyPayStatus = "paystatus:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id or ref:phase)
	KeyDedup = "dedup:%s:%s"

	// Fast-path replay guard for gateway return callbacks: paid:{payment_ref}
	KeyPaidRef = "paid:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLPaidRef     = 48 * time.Hour
)
