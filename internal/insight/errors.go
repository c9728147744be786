package insight

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidTicker            Kind = "invalid_ticker"
	KindModelCallFailed          Kind = "model_call_failed"
	KindUnparseablePrice         Kind = "unparseable_price"
	KindUnparseableChange        Kind = "unparseable_change"
	KindEmptyAnalysis            Kind = "empty_analysis"
	KindInvalidPrice             Kind = "invalid_price"
	KindInvalidChangeFormat      Kind = "invalid_change_format"
	KindChangeSignMismatch       Kind = "change_sign_mismatch"
	KindAnalysisTooLong          Kind = "analysis_too_long"
	KindAnalysisEmpty            Kind = "analysis_empty"
	KindChartSynthesisDegenerate Kind = "chart_synthesis_degenerate"
)

// Error is the typed failure returned by every pipeline stage. Two errors
// match under errors.Is when their kinds are equal, so the sentinels below
// can be compared against any wrapped instance.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidTicker            = &Error{Kind: KindInvalidTicker}
	ErrModelCallFailed          = &Error{Kind: KindModelCallFailed}
	ErrUnparseablePrice         = &Error{Kind: KindUnparseablePrice}
	ErrUnparseableChange        = &Error{Kind: KindUnparseableChange}
	ErrEmptyAnalysis            = &Error{Kind: KindEmptyAnalysis}
	ErrInvalidPrice             = &Error{Kind: KindInvalidPrice}
	ErrInvalidChangeFormat      = &Error{Kind: KindInvalidChangeFormat}
	ErrChangeSignMismatch       = &Error{Kind: KindChangeSignMismatch}
	ErrAnalysisTooLong          = &Error{Kind: KindAnalysisTooLong}
	ErrAnalysisEmpty            = &Error{Kind: KindAnalysisEmpty}
	ErrChartSynthesisDegenerate = &Error{Kind: KindChartSynthesisDegenerate}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the pipeline kind carried by err, or "" if err did not
// originate in the pipeline.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether repeating the same search may succeed. Only
// model call failures qualify, and only when the collaborator marks its
// own error as retryable.
func Retryable(err error) bool {
	if KindOf(err) != KindModelCallFailed {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
