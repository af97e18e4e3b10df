// Package mocks provides test doubles for the google client.
package mocks

import (
	context "context"

	google "github.com/sells-group/lead-qualify/pkg/google"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is an autogenerated mock type for the Client type
type MockClient struct {
	mock.Mock
}

// FindBusiness provides a mock function with given fields: ctx, company, location
func (_m *MockClient) FindBusiness(ctx context.Context, company string, location string) (*google.Place, error) {
	ret := _m.Called(ctx, company, location)

	if len(ret) == 0 {
		panic("no return value specified for FindBusiness")
	}

	var r0 *google.Place
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*google.Place, error)); ok {
		return rf(ctx, company, location)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *google.Place); ok {
		r0 = rf(ctx, company, location)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.Place)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, company, location)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
