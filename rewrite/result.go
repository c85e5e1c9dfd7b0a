package rewrite

import "errors"

// ErrMalformedBody is the only failure the rewriter recognizes,
// the request body could not be decoded as a usable JSON value
var ErrMalformedBody = errors.New("request body is not valid JSON")

// Outcome tells the host what to do with the intercepted request
type Outcome int

const (
	// OutcomePassThrough means forward the original request unmodified
	OutcomePassThrough Outcome = iota
	// OutcomeRewritten means forward the request with Result.Body as its body
	OutcomeRewritten
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassThrough:
		return "pass_through"
	case OutcomeRewritten:
		return "rewritten"
	default:
		return "unknown"
	}
}

// Result is the instruction handed back to the host for a single request body
type Result struct {
	Outcome Outcome
	// Body is the replacement request body, only set when Outcome is OutcomeRewritten.
	// A rewritten body may be byte-for-byte the original modulo whitespace
	// when no product substitution was needed.
	Body []byte
	// ProductIDReplaced is true when PRODUCT_ID and PRODUCT_NAME were overwritten
	ProductIDReplaced bool
	// PreviousProductID is the raw value of the replaced PRODUCT_ID
	PreviousProductID string
	// NewProductID is the PRODUCT_ID written in place of PreviousProductID
	NewProductID string
	// Err wraps ErrMalformedBody when Outcome is OutcomePassThrough
	Err error
}

// PassThrough returns a result instructing the host to forward the
// original request unchanged because of err
func PassThrough(err error) Result {
	return Result{
		Outcome: OutcomePassThrough,
		Err:     err,
	}
}

// Rewritten returns a result instructing the host to forward body
// in place of the original request body
func Rewritten(body []byte) Result {
	return Result{
		Outcome: OutcomeRewritten,
		Body:    body,
	}
}

// IsPassThrough returns true if the host should forward the original request body
func (r Result) IsPassThrough() bool {
	return r.Outcome != OutcomeRewritten
}
