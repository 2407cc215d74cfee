package mocks

import (
	"context"

	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows      *MockWorkflowRepository
	Instances      *MockInstanceRepository
	PendingActions *MockPendingActionRepository
	Audit          *MockAuditRepository
}

// NewMockPersistence wires a MockPersistence with fresh repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows:      &MockWorkflowRepository{},
		Instances:      &MockInstanceRepository{},
		PendingActions: &MockPendingActionRepository{},
		Audit:          &MockAuditRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) InstanceRepository() persistence.InstanceRepository {
	return m.Instances
}

func (m *MockPersistence) PendingActionRepository() persistence.PendingActionRepository {
	return m.PendingActions
}

func (m *MockPersistence) AuditRepository() persistence.AuditRepository {
	return m.Audit
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) List(ctx context.Context, tenantID string, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	args := m.Called(ctx, tenantID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)

	return args.Error(0)
}

// MockInstanceRepository is a mock implementation of persistence.InstanceRepository interface.
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance, action *models.PendingAction) error {
	args := m.Called(ctx, instance, action)

	return args.Error(0)
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) List(ctx context.Context, tenantID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx, tenantID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

// MockPendingActionRepository is a mock implementation of persistence.PendingActionRepository interface.
type MockPendingActionRepository struct {
	mock.Mock
}

func (m *MockPendingActionRepository) GetByID(ctx context.Context, tenantID, id string) (*models.PendingAction, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.PendingAction), args.Error(1)
}

func (m *MockPendingActionRepository) ListOpen(ctx context.Context, tenantID string, roles []string, userID string) ([]*models.PendingAction, error) {
	args := m.Called(ctx, tenantID, roles, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.PendingAction), args.Error(1)
}

func (m *MockPendingActionRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.PendingAction, error) {
	args := m.Called(ctx, tenantID, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.PendingAction), args.Error(1)
}

func (m *MockPendingActionRepository) Close(ctx context.Context, tenantID, id string, closure models.ActionClosure) (*models.PendingAction, error) {
	args := m.Called(ctx, tenantID, id, closure)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.PendingAction), args.Error(1)
}

// MockAuditRepository is a mock implementation of persistence.AuditRepository interface.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockAuditRepository) ListByInstance(ctx context.Context, tenantID, instanceID string) ([]*models.AuditRecord, error) {
	args := m.Called(ctx, tenantID, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuditRecord), args.Error(1)
}
