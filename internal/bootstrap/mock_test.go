// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	context "context"
	reflect "reflect"

	remote "github.com/electricsheep/groundwork/internal/remote"
	gomock "github.com/golang/mock/gomock"
)

// MockOfflineChecker is a mock of OfflineChecker interface.
type MockOfflineChecker struct {
	ctrl     *gomock.Controller
	recorder *MockOfflineCheckerMockRecorder
}

// MockOfflineCheckerMockRecorder is the mock recorder for MockOfflineChecker.
type MockOfflineCheckerMockRecorder struct {
	mock *MockOfflineChecker
}

// NewMockOfflineChecker creates a new mock instance.
func NewMockOfflineChecker(ctrl *gomock.Controller) *MockOfflineChecker {
	mock := &MockOfflineChecker{ctrl: ctrl}
	mock.recorder = &MockOfflineCheckerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOfflineChecker) EXPECT() *MockOfflineCheckerMockRecorder {
	return m.recorder
}

// IsOfflineOnly mocks base method.
func (m *MockOfflineChecker) IsOfflineOnly() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsOfflineOnly")
	ret0, _ := ret[0].(bool)
	return ret0
}

// IsOfflineOnly indicates an expected call of IsOfflineOnly.
func (mr *MockOfflineCheckerMockRecorder) IsOfflineOnly() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsOfflineOnly", reflect.TypeOf((*MockOfflineChecker)(nil).IsOfflineOnly))
}

// MockClientFactory is a mock of ClientFactory interface.
type MockClientFactory struct {
	ctrl     *gomock.Controller
	recorder *MockClientFactoryMockRecorder
}

// MockClientFactoryMockRecorder is the mock recorder for MockClientFactory.
type MockClientFactoryMockRecorder struct {
	mock *MockClientFactory
}

// NewMockClientFactory creates a new mock instance.
func NewMockClientFactory(ctrl *gomock.Controller) *MockClientFactory {
	mock := &MockClientFactory{ctrl: ctrl}
	mock.recorder = &MockClientFactoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockClientFactory) EXPECT() *MockClientFactoryMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockClientFactory) Create(ctx context.Context, cfg remote.Config) (*remote.Client, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, cfg)
	ret0, _ := ret[0].(*remote.Client)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockClientFactoryMockRecorder) Create(ctx, cfg interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockClientFactory)(nil).Create), ctx, cfg)
}
