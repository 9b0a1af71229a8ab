package translate

import (
	"errors"
	"fmt"
	"net"
)

// Kind classifies a translation failure.
type Kind int

const (
	KindMissingCredential Kind = iota + 1
	KindHTTPStatus
	KindConnection
	KindTransport
	KindEmptyResult
	KindUnknownEngine
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindHTTPStatus:
		return "http_status"
	case KindConnection:
		return "connection"
	case KindTransport:
		return "transport"
	case KindEmptyResult:
		return "empty_result"
	case KindUnknownEngine:
		return "unknown_engine"
	default:
		return "unknown"
	}
}

// Error is an expected backend failure. It is rendered into overlay text by
// Display rather than propagated.
type Error struct {
	Engine string
	Kind   Kind
	// Status is the HTTP status for KindHTTPStatus.
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: %s %d", e.Engine, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Engine, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Engine, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Display returns the bracketed message shown in place of a translation.
func (e *Error) Display() string {
	name := displayName(e.Engine)
	switch e.Kind {
	case KindMissingCredential:
		return fmt.Sprintf("(%s API key is not configured)", name)
	case KindHTTPStatus:
		return fmt.Sprintf("(%s translation failed: HTTP %d)", name, e.Status)
	case KindConnection:
		return fmt.Sprintf("(%s connection failed - cannot reach server)", name)
	case KindEmptyResult:
		return fmt.Sprintf("(%s returned no translation)", name)
	case KindUnknownEngine:
		return fmt.Sprintf("(Unsupported translation engine: %s)", e.Engine)
	default:
		return fmt.Sprintf("(%s translation failed: %v)", name, e.Err)
	}
}

func displayName(engine string) string {
	switch engine {
	case EngineDeepL:
		return "DeepL"
	case EngineLibre:
		return "LibreTranslate"
	default:
		return engine
	}
}

// isConnectionError reports whether err happened before a connection to the
// server was established.
func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
