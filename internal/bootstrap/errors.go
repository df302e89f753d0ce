// SPDX-License-Identifier: Apache-2.0

package bootstrap

import "github.com/joomcode/errorx"

var (
	ErrorsNamespace      = errorx.NewNamespace("bootstrap")
	ClientCreationFailed = ErrorsNamespace.NewType("client_creation_failed")
	PinningNotEnabled    = ErrorsNamespace.NewType("pinning_not_enabled")
)

const (
	panicDuringCreationMsg = "panic during remote client creation: %v"
	nilClientMsg           = "client factory returned no client"
	pinningNotEnabledMsg   = "no pin covers the backend host of %s"
)
