package mocks

import (
	"context"

	"slide-server/internal/models"
	"slide-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockRunRepository is a mock type for the RunRepository type
type MockRunRepository struct {
	mock.Mock
}

// Save provides a mock function with given fields: ctx, record
func (_m *MockRunRepository) Save(ctx context.Context, record *models.GenerationRecord) error {
	ret := _m.Called(ctx, record)
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockRunRepository) GetByID(ctx context.Context, id string) (*models.GenerationRecord, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.GenerationRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.GenerationRecord)
	}

	return r0, ret.Error(1)
}

// ListBySessionID provides a mock function with given fields: ctx, sessionID
func (_m *MockRunRepository) ListBySessionID(ctx context.Context, sessionID string) ([]*models.GenerationRecord, error) {
	ret := _m.Called(ctx, sessionID)

	var r0 []*models.GenerationRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.GenerationRecord)
	}

	return r0, ret.Error(1)
}

// NewMockRunRepository creates a new instance of MockRunRepository.
func NewMockRunRepository(t interface {
	mock.TestingT
	Helper()
}) *MockRunRepository {
	m := &MockRunRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.RunRepository = (*MockRunRepository)(nil)
