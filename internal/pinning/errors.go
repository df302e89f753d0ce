// SPDX-License-Identifier: Apache-2.0

package pinning

import (
	"errors"
	"strings"

	"github.com/joomcode/errorx"
)

var (
	ErrorsNamespace           = errorx.NewNamespace("pinning")
	InvalidPinSet             = ErrorsNamespace.NewType("invalid_pin_set")
	CertificatePinningFailure = ErrorsNamespace.NewType("certificate_pinning_failure")

	HostProperty          = errorx.RegisterPrintableProperty("host")
	PatternProperty       = errorx.RegisterPrintableProperty("pattern")
	PresentedPinsProperty = errorx.RegisterPrintableProperty("presented_pins")
)

const (
	pinningFailureErrorMsg = "certificate pinning failure for host %q: none of the presented pins [%s] are configured"
)

func NewInvalidPinSetError(pattern string, format string, args ...any) *errorx.Error {
	return InvalidPinSet.New(format, args...).WithProperty(PatternProperty, pattern)
}

func NewCertificatePinningFailureError(host string, presented []string) *errorx.Error {
	return CertificatePinningFailure.New(pinningFailureErrorMsg, host, strings.Join(presented, ", ")).
		WithProperty(HostProperty, host).
		WithProperty(PresentedPinsProperty, strings.Join(presented, ","))
}

// IsPinningFailure reports whether err, or any error it wraps, is a CertificatePinningFailure.
// Errors returned by an http.Client are wrapped in *url.Error, which errorx.IsOfType does not look
// through.
func IsPinningFailure(err error) bool {
	var e *errorx.Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.IsOfType(CertificatePinningFailure) {
			return true
		}
		err = e.Cause()
	}
	return false
}
