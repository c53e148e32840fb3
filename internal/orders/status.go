package orders

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type FulfillType string

const (
	FulfillImmediate FulfillType = "immediate"
	FulfillLeadTime  FulfillType = "leadtime"
)

var validNext = map[Status]map[Status]bool{
	StatusNew:       {StatusShipped: true, StatusCompleted: true, StatusCancelled: true},
	StatusShipped:   {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
