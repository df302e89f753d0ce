// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"github.com/joomcode/errorx"
)

var (
	ErrorsNamespace    = errorx.NewNamespace("remote")
	ConfigurationError = ErrorsNamespace.NewType("configuration_error")
	ModuleNotInstalled = ErrorsNamespace.NewType("module_not_installed", errorx.NotFound())
	RequestError       = ErrorsNamespace.NewType("request_error")
	DecodeError        = ErrorsNamespace.NewType("decode_error")

	urlProperty        = errorx.RegisterPrintableProperty("url")
	moduleProperty     = errorx.RegisterPrintableProperty("module")
	statusCodeProperty = errorx.RegisterPrintableProperty("status_code")
)

const (
	configurationErrorMsg = "invalid remote client configuration: %s"
	moduleNotInstalledMsg = "module %q is not installed on the remote client"
	requestErrorMsg       = "request to '%s' failed"
	requestStatusErrorMsg = "request to '%s' failed with status %d"
	decodeErrorMsg        = "failed to decode response from '%s'"
)

func NewConfigurationError(reason string) *errorx.Error {
	return ConfigurationError.New(configurationErrorMsg, reason)
}

func NewModuleNotInstalledError(module string) *errorx.Error {
	return ModuleNotInstalled.New(moduleNotInstalledMsg, module).
		WithProperty(moduleProperty, module)
}

func NewRequestError(cause error, url string, statusCode int) *errorx.Error {
	if cause == nil {
		return RequestError.New(requestStatusErrorMsg, url, statusCode).
			WithProperty(urlProperty, url).
			WithProperty(statusCodeProperty, statusCode)
	}

	return RequestError.Wrap(cause, requestErrorMsg, url).
		WithProperty(urlProperty, url).
		WithProperty(statusCodeProperty, statusCode)
}

func NewDecodeError(cause error, url string) *errorx.Error {
	return DecodeError.Wrap(cause, decodeErrorMsg, url).
		WithProperty(urlProperty, url)
}

// StatusCode returns the HTTP status recorded on a RequestError, or 0.
func StatusCode(err error) int {
	v, ok := errorx.ExtractProperty(err, statusCodeProperty)
	if !ok {
		return 0
	}
	code, _ := v.(int)
	return code
}
