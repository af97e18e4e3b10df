// Package mocks provides test doubles for the perplexity client.
package mocks

import (
	context "context"

	perplexity "github.com/sells-group/lead-qualify/pkg/perplexity"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Ask provides a mock function with given fields: ctx, q
func (_m *MockClient) Ask(ctx context.Context, q perplexity.Question) (*perplexity.Answer, error) {
	ret := _m.Called(ctx, q)

	if len(ret) == 0 {
		panic("no return value specified for Ask")
	}

	var r0 *perplexity.Answer
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, perplexity.Question) (*perplexity.Answer, error)); ok {
		return rf(ctx, q)
	}
	if rf, ok := ret.Get(0).(func(context.Context, perplexity.Question) *perplexity.Answer); ok {
		r0 = rf(ctx, q)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*perplexity.Answer)
	}

	if rf, ok := ret.Get(1).(func(context.Context, perplexity.Question) error); ok {
		r1 = rf(ctx, q)
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
