package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRoleResolver is a mock implementation of roles.Resolver interface.
type MockRoleResolver struct {
	mock.Mock
}

func (m *MockRoleResolver) Roles(ctx context.Context, tenantID, userID string) ([]string, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}
