// Package diag is the pipeline's non-fatal diagnostic channel (spec §7): a
// fixed-size ring of coded events recorded by every component and never
// thrown. Grounded in the teacher's logrus usage (sim/simulator.go,
// cmd/root.go) for the accompanying structured-log line, and in
// ja7ad-consumption's pkg/system/proc/errs.go for the sentinel-error
// registry used by the handful of genuinely fatal Go-level error paths.
package diag

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Size is the number of slots in the diagnostic ring.
const Size = 100

// Kind categorises a diagnostic per spec §7.
type Kind int

const (
	KindInterfaceMisuse Kind = iota
	KindHardwareIdentity
	KindRawDataValidation
	KindGrammarViolation
	KindNumericFailure
	KindParameterAbsent
	KindStorageIO
)

func (k Kind) String() string {
	switch k {
	case KindInterfaceMisuse:
		return "interface-misuse"
	case KindHardwareIdentity:
		return "hardware-identity"
	case KindRawDataValidation:
		return "raw-data-validation"
	case KindGrammarViolation:
		return "grammar-violation"
	case KindNumericFailure:
		return "numeric-failure"
	case KindParameterAbsent:
		return "parameter-absent"
	case KindStorageIO:
		return "storage-io"
	default:
		return "unknown"
	}
}

// Severity is advisory only; the pipeline never aborts on it.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// Code enumerates the individual diagnostics a component can raise.
type Code int

const (
	CodeTimeBreak Code = iota
	CodeJumpDD
	CodeJumpInTail
	CodeSlopeInJump
	CodeSlopeDD
	CodeSlopeInTail
	CodeNoJumpChannel
	CodeSlopeMissing
	CodeSingularFit
	CodeApproxV3
	CodeApproxI3
	CodePointsADNotOC
	CodeNoBaseline
	CodeNoSoC
	CodeStorageFailure
	CodeNullCallback
	CodeAlreadyConfigured
	CodeIdentityFailure
	CodeOutOfRange
)

var codeNames = map[Code]string{
	CodeTimeBreak:         "TIME_BREAK",
	CodeJumpDD:            "JUMP_DD",
	CodeJumpInTail:        "JUMP_IN_TAIL",
	CodeSlopeInJump:       "SLOPE_IN_JUMP",
	CodeSlopeDD:           "SLOPE_DD",
	CodeSlopeInTail:       "SLOPE_IN_TAIL",
	CodeNoJumpChannel:     "NO_JUMP_CHANNEL",
	CodeSlopeMissing:      "SLOPE_MISSING",
	CodeSingularFit:       "SINGULAR_FIT",
	CodeApproxV3:          "APPROX_V3",
	CodeApproxI3:          "APPROX_I3",
	CodePointsADNotOC:     "POINTS_AD_NOT_OC",
	CodeNoBaseline:        "NO_BASELINE",
	CodeNoSoC:             "NO_SOC",
	CodeStorageFailure:    "STORAGE_FAILURE",
	CodeNullCallback:      "NULL_CALLBACK",
	CodeAlreadyConfigured: "ALREADY_CONFIGURED",
	CodeIdentityFailure:   "IDENTITY_FAILURE",
	CodeOutOfRange:        "OUT_OF_RANGE",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN_CODE"
}

// Entry is one recorded diagnostic.
type Entry struct {
	Code     Code
	Kind     Kind
	Severity Severity
	Source   string
	Time     time.Time
	Message  string
}

// Ring is a fixed-size, overwrite-oldest ring of the last Size diagnostics.
// Never allocates past setup, matching spec §5's no-dynamic-allocation
// resource model.
type Ring struct {
	entries [Size]Entry
	count   int
	next    int
}

// Record appends a diagnostic, overwriting the oldest slot once full, and
// emits a structured log line at a level derived from Severity.
func (r *Ring) Record(code Code, kind Kind, severity Severity, source, message string) {
	e := Entry{Code: code, Kind: kind, Severity: severity, Source: source, Time: time.Now(), Message: message}
	r.entries[r.next] = e
	r.next = (r.next + 1) % Size
	if r.count < Size {
		r.count++
	}

	fields := logrus.Fields{
		"code":   code.String(),
		"kind":   kind.String(),
		"source": source,
	}
	switch severity {
	case SeverityError:
		logrus.WithFields(fields).Error(message)
	case SeverityWarn:
		logrus.WithFields(fields).Warn(message)
	default:
		logrus.WithFields(fields).Debug(message)
	}
}

// Len reports how many diagnostics are currently stored (≤ Size).
func (r *Ring) Len() int { return r.count }

// Recent returns the last n diagnostics, most recent last. n is clamped to
// Len().
func (r *Ring) Recent(n int) []Entry {
	if n > r.count {
		n = r.count
	}
	out := make([]Entry, n)
	idx := r.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + Size) % Size
		out[n-1-i] = r.entries[idx]
	}
	return out
}
