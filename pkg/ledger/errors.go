package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ecochain/platform/pkg/common/httpclient"
)

// ErrorKind is the structured failure classification raised by ledger
// operations. Retry policy is defined on the kind, not on error text.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindUnderpriced ErrorKind = "underpriced"
	KindTimeout     ErrorKind = "timeout"
	KindReverted    ErrorKind = "reverted"
	KindUnknown     ErrorKind = "unknown"
)

// Retryable reports whether an operation failing with this kind is worth
// re-submitting. Reverted transactions will revert again; unknown failures
// are deliberately not recommended for retry.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUnderpriced, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is a ledger operation failure with a structured kind.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledger %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("ledger %s: %s", e.Op, e.Message)
}

// Classify maps an arbitrary error onto an ErrorKind. Structured ledger
// errors carry their own kind; network timeouts map to KindTimeout. Free-text
// errors are scanned only for the historical markers (gas_price, timeout,
// underpriced) — anything else is KindUnknown, so unclassified failures never
// gain a retry recommendation by accident.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}

	if httpclient.IsTimeout(err) {
		return KindTimeout
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "underpriced"), strings.Contains(text, "gas_price"):
		return KindUnderpriced
	case strings.Contains(text, "timeout"):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// ParseKind converts a wire-format kind string into an ErrorKind, defaulting
// to KindUnknown for unrecognized values.
func ParseKind(raw string) ErrorKind {
	switch ErrorKind(strings.TrimSpace(strings.ToLower(raw))) {
	case KindRateLimited:
		return KindRateLimited
	case KindUnderpriced:
		return KindUnderpriced
	case KindTimeout:
		return KindTimeout
	case KindReverted:
		return KindReverted
	default:
		return KindUnknown
	}
}
