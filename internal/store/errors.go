// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/joomcode/errorx"
)

var (
	ErrorsNamespace  = errorx.NewNamespace("store")
	LockError        = ErrorsNamespace.NewType("lock_error")
	OpenError        = ErrorsNamespace.NewType("open_error")
	UnversionedStore = ErrorsNamespace.NewType("unversioned_store")

	PathProperty = errorx.RegisterPrintableProperty("path")
)

const (
	lockErrorMsg        = "failed to acquire store lock %q"
	lockTimeoutMsg      = "timed out acquiring store lock %q"
	openErrorMsg        = "failed to open store %q"
	unversionedStoreMsg = "store %q has tables but no schema version"
)

func NewLockError(path string, cause error) *errorx.Error {
	if cause == nil {
		return LockError.New(lockTimeoutMsg, path).WithProperty(PathProperty, path)
	}
	return LockError.Wrap(cause, lockErrorMsg, path).WithProperty(PathProperty, path)
}

func NewOpenError(path string, cause error) *errorx.Error {
	return OpenError.Wrap(cause, openErrorMsg, path).WithProperty(PathProperty, path)
}

func NewUnversionedStoreError(path string) *errorx.Error {
	return UnversionedStore.New(unversionedStoreMsg, path).WithProperty(PathProperty, path)
}
