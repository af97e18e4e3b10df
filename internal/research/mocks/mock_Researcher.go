// Package mocks provides test doubles for the research researcher.
package mocks

import (
	"context"

	research "github.com/sells-group/lead-qualify/internal/research"
	mock "github.com/stretchr/testify/mock"
)

// MockResearcher is a mock type for the Researcher interface.
type MockResearcher struct {
	mock.Mock
}

// VerifyBusiness provides a mock function with given fields: ctx, q
func (_m *MockResearcher) VerifyBusiness(ctx context.Context, q research.Query) (*research.BusinessResult, error) {
	ret := _m.Called(ctx, q)

	if len(ret) == 0 {
		panic("no return value specified for VerifyBusiness")
	}

	var r0 *research.BusinessResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, research.Query) (*research.BusinessResult, error)); ok {
		return rf(ctx, q)
	}
	if rf, ok := ret.Get(0).(func(context.Context, research.Query) *research.BusinessResult); ok {
		r0 = rf(ctx, q)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*research.BusinessResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, research.Query) error); ok {
		r1 = rf(ctx, q)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ResearchOwner provides a mock function with given fields: ctx, q
func (_m *MockResearcher) ResearchOwner(ctx context.Context, q research.Query) (*research.OwnerResult, error) {
	ret := _m.Called(ctx, q)

	if len(ret) == 0 {
		panic("no return value specified for ResearchOwner")
	}

	var r0 *research.OwnerResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, research.Query) (*research.OwnerResult, error)); ok {
		return rf(ctx, q)
	}
	if rf, ok := ret.Get(0).(func(context.Context, research.Query) *research.OwnerResult); ok {
		r0 = rf(ctx, q)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*research.OwnerResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, research.Query) error); ok {
		r1 = rf(ctx, q)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockResearcher creates a new instance of MockResearcher.
func NewMockResearcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockResearcher {
	mock := &MockResearcher{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
