// Package mocks provides test doubles for the signalhouse client.
package mocks

import (
	"context"

	signalhouse "github.com/sells-group/lead-qualify/pkg/signalhouse"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SendSMS provides a mock function with given fields: ctx, req
func (_m *MockClient) SendSMS(ctx context.Context, req signalhouse.SendRequest) (*signalhouse.MessageResult, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for SendSMS")
	}

	var r0 *signalhouse.MessageResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, signalhouse.SendRequest) (*signalhouse.MessageResult, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, signalhouse.SendRequest) *signalhouse.MessageResult); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*signalhouse.MessageResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, signalhouse.SendRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
