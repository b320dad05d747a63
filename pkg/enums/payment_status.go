package enums

// PaymentStatus tracks a gateway payment attempt.
type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusFailed   PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusCreated,
	PaymentStatusCaptured,
	PaymentStatusFailed,
}

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) IsValid() bool {
	return member(s, validPaymentStatuses)
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, validPaymentStatuses)
}
