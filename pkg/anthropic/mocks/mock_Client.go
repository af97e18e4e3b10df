// Package mocks provides test doubles for the anthropic client.
package mocks

import (
	"context"

	anthropic "github.com/sells-group/lead-qualify/pkg/anthropic"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Ask provides a mock function with given fields: ctx, p
func (_m *MockClient) Ask(ctx context.Context, p anthropic.Prompt) (*anthropic.Reply, error) {
	ret := _m.Called(ctx, p)

	if len(ret) == 0 {
		panic("no return value specified for Ask")
	}

	var r0 *anthropic.Reply
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, anthropic.Prompt) (*anthropic.Reply, error)); ok {
		return rf(ctx, p)
	}
	if rf, ok := ret.Get(0).(func(context.Context, anthropic.Prompt) *anthropic.Reply); ok {
		r0 = rf(ctx, p)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*anthropic.Reply)
	}

	if rf, ok := ret.Get(1).(func(context.Context, anthropic.Prompt) error); ok {
		r1 = rf(ctx, p)
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
