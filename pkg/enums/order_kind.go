package enums

// OrderKind labels how an order came out of checkout splitting.
type OrderKind string

const (
	// OrderKindLaboratory is one order per resolved laboratory group.
	OrderKindLaboratory OrderKind = "laboratory"
	// OrderKindFallback holds cart lines whose laboratory could not be resolved.
	OrderKindFallback OrderKind = "fallback"
	// OrderKindPrescription is a prescription-only checkout with no cart lines.
	OrderKindPrescription OrderKind = "prescription"
)

func (k OrderKind) String() string {
	return string(k)
}
