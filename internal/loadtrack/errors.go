package loadtrack

import "fmt"

// UndefinedVersion is the engine version stamped on errors until the
// embedded chart content has reported its own version.
const UndefinedVersion = "undefined"

// ErrorKind discriminates the failure modes surfaced through Failed.
type ErrorKind int

const (
	// ErrNavigation wraps a navigation error delivered after commit.
	ErrNavigation ErrorKind = iota
	// ErrProvisionalNavigation wraps a navigation error delivered before
	// the load was committed.
	ErrProvisionalNavigation
	// ErrWebContentTerminated means the tab's content process crashed. The
	// owning component tracks how many times it has retried the load.
	ErrWebContentTerminated
	// ErrInternal means the chart engine itself reported an unrecoverable
	// condition rather than the navigation layer.
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNavigation:
		return "navigation"
	case ErrProvisionalNavigation:
		return "provisionalNavigation"
	case ErrWebContentTerminated:
		return "webContentTerminated"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// LoadError is a failed chart load. URL and Version carry the context of
// the attempt; exactly one of Cause, Retries or Detail is meaningful
// depending on Kind.
type LoadError struct {
	Kind    ErrorKind
	URL     string
	Version string
	Cause   error  // ErrNavigation, ErrProvisionalNavigation
	Retries int    // ErrWebContentTerminated
	Detail  string // ErrInternal
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case ErrNavigation:
		return fmt.Sprintf("navigation failed for %s (engine %s): %v", e.URL, e.Version, e.Cause)
	case ErrProvisionalNavigation:
		return fmt.Sprintf("provisional navigation failed for %s (engine %s): %v", e.URL, e.Version, e.Cause)
	case ErrWebContentTerminated:
		return fmt.Sprintf("web content terminated for %s (engine %s), retry %d", e.URL, e.Version, e.Retries)
	case ErrInternal:
		detail := e.Detail
		if detail == "" {
			detail = "unspecified"
		}
		return fmt.Sprintf("chart engine error for %s (engine %s): %s", e.URL, e.Version, detail)
	default:
		return fmt.Sprintf("chart load failed for %s (engine %s)", e.URL, e.Version)
	}
}

func (e *LoadError) Unwrap() error { return e.Cause }

// NewNavigationError wraps a post-commit navigation failure.
func NewNavigationError(url, version string, cause error) *LoadError {
	return &LoadError{Kind: ErrNavigation, URL: url, Version: orUndefined(version), Cause: cause}
}

// NewProvisionalError wraps a navigation failure that occurred before the
// load was committed.
func NewProvisionalError(url, version string, cause error) *LoadError {
	return &LoadError{Kind: ErrProvisionalNavigation, URL: url, Version: orUndefined(version), Cause: cause}
}

// NewTerminationError records a content-process crash and the owner's
// retry count for this logical session.
func NewTerminationError(url, version string, retries int) *LoadError {
	return &LoadError{Kind: ErrWebContentTerminated, URL: url, Version: orUndefined(version), Retries: retries}
}

// NewInternalError records a condition reported by the chart engine itself.
func NewInternalError(url, version, detail string) *LoadError {
	return &LoadError{Kind: ErrInternal, URL: url, Version: orUndefined(version), Detail: detail}
}

func orUndefined(version string) string {
	if version == "" {
		return UndefinedVersion
	}
	return version
}
