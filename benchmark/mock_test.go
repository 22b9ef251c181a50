package benchmark

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Octogonapus/GalaxyBenchmark/galaxy"
)

// mockService satisfies galaxy.Service with expectations set per test.
type mockService struct {
	mock.Mock
}

func (m *mockService) ServerURL() string {
	return "https://mock.test"
}

func (m *mockService) ShowWorkflow(ctx context.Context, id string) (*galaxy.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*galaxy.Workflow), args.Error(1)
}

func (m *mockService) ListWorkflows(ctx context.Context, name string, published bool) ([]*galaxy.Workflow, error) {
	args := m.Called(ctx, name, published)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*galaxy.Workflow), args.Error(1)
}

func (m *mockService) WorkflowInputs(ctx context.Context, workflowID, label string) ([]string, error) {
	args := m.Called(ctx, workflowID, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockService) InvokeWorkflow(ctx context.Context, workflowID string, inputs map[string]galaxy.InvocationInput, historyName string) (*galaxy.Invocation, error) {
	args := m.Called(ctx, workflowID, inputs, historyName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*galaxy.Invocation), args.Error(1)
}

func (m *mockService) ShowDataset(ctx context.Context, id string) (*galaxy.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*galaxy.Dataset), args.Error(1)
}

func (m *mockService) ListDatasets(ctx context.Context, name string) ([]*galaxy.Dataset, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*galaxy.Dataset), args.Error(1)
}

func (m *mockService) ShowInvocation(ctx context.Context, id string) (*galaxy.Invocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*galaxy.Invocation), args.Error(1)
}

func (m *mockService) WaitForInvocation(ctx context.Context, id string, timeout, interval time.Duration) (*galaxy.Invocation, error) {
	args := m.Called(ctx, id, timeout, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*galaxy.Invocation), args.Error(1)
}

func (m *mockService) WaitForJob(ctx context.Context, id string, timeout, interval time.Duration) (string, error) {
	args := m.Called(ctx, id, timeout, interval)
	return args.String(0), args.Error(1)
}

func (m *mockService) ShowJob(ctx context.Context, id string, full bool) (map[string]any, error) {
	args := m.Called(ctx, id, full)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}
