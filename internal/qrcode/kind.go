package qrcode

// Kind identifies which family a scanned code belongs to.
type Kind int

const (
	// KindUnknown covers any scan whose length matches neither configured code.
	KindUnknown Kind = iota
	// KindManual is the short, digits-only code printed on a product manual.
	KindManual
	// KindProcess is the long code printed on a production work-order ticket.
	KindProcess
)

func (k Kind) String() string {
	switch k {
	case KindManual:
		return "manual"
	case KindProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Opposite returns the kind that completes a pair with k.
func (k Kind) Opposite() Kind {
	switch k {
	case KindManual:
		return KindProcess
	case KindProcess:
		return KindManual
	default:
		return KindUnknown
	}
}
