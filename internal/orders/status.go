package orders

type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Gateway payment statuses.
const (
	PaymentApproved  = "approved"
	PaymentPending   = "pending"
	PaymentInProcess = "in_process"
	PaymentRejected  = "rejected"
	PaymentCancelled = "cancelled"
	PaymentRefunded  = "refunded"
	RefundApproved   = "approved"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:           {StatusProcessing: true, StatusCompleted: true, StatusCancelled: true},
	StatusProcessing:        {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:         {StatusRefunded: true, StatusPartiallyRefunded: true},
	StatusPartiallyRefunded: {StatusRefunded: true},
	StatusCancelled:         {},
	StatusRefunded:          {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether payment-status events may no longer move the order.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// MapPaymentStatus translates a gateway payment status into an order status.
func MapPaymentStatus(paymentStatus string) Status {
	switch paymentStatus {
	case PaymentApproved:
		return StatusCompleted
	case PaymentPending, PaymentInProcess:
		return StatusProcessing
	case PaymentRejected, PaymentCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}
