// Package mocks provides test doubles for the trestle client.
package mocks

import (
	"context"

	trestle "github.com/sells-group/lead-qualify/pkg/trestle"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// RealContact provides a mock function with given fields: ctx, req
func (_m *MockClient) RealContact(ctx context.Context, req trestle.RealContactRequest) (*trestle.RealContactResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for RealContact")
	}

	var r0 *trestle.RealContactResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, trestle.RealContactRequest) (*trestle.RealContactResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, trestle.RealContactRequest) *trestle.RealContactResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*trestle.RealContactResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, trestle.RealContactRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SendFeedback provides a mock function with given fields: ctx, req
func (_m *MockClient) SendFeedback(ctx context.Context, req trestle.FeedbackRequest) error {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for SendFeedback")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, trestle.FeedbackRequest) error); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.Error(0)
	}

	return r0
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
