// Package mocks provides test doubles for the tracerfy client.
package mocks

import (
	"context"

	tracerfy "github.com/sells-group/lead-qualify/pkg/tracerfy"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// BeginTrace provides a mock function with given fields: ctx, records, traceType
func (_m *MockClient) BeginTrace(ctx context.Context, records []tracerfy.TraceRecord, traceType tracerfy.TraceType) (*tracerfy.TraceJobResponse, error) {
	ret := _m.Called(ctx, records, traceType)

	if len(ret) == 0 {
		panic("no return value specified for BeginTrace")
	}

	var r0 *tracerfy.TraceJobResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []tracerfy.TraceRecord, tracerfy.TraceType) (*tracerfy.TraceJobResponse, error)); ok {
		return rf(ctx, records, traceType)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []tracerfy.TraceRecord, tracerfy.TraceType) *tracerfy.TraceJobResponse); ok {
		r0 = rf(ctx, records, traceType)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*tracerfy.TraceJobResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, []tracerfy.TraceRecord, tracerfy.TraceType) error); ok {
		r1 = rf(ctx, records, traceType)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetQueues provides a mock function with given fields: ctx
func (_m *MockClient) GetQueues(ctx context.Context) ([]tracerfy.Queue, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for GetQueues")
	}

	var r0 []tracerfy.Queue
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) ([]tracerfy.Queue, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) []tracerfy.Queue); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]tracerfy.Queue)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetQueueResults provides a mock function with given fields: ctx, queueID
func (_m *MockClient) GetQueueResults(ctx context.Context, queueID int) ([]tracerfy.TraceResult, error) {
	ret := _m.Called(ctx, queueID)

	if len(ret) == 0 {
		panic("no return value specified for GetQueueResults")
	}

	var r0 []tracerfy.TraceResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]tracerfy.TraceResult, error)); ok {
		return rf(ctx, queueID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []tracerfy.TraceResult); ok {
		r0 = rf(ctx, queueID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]tracerfy.TraceResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, queueID)
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
