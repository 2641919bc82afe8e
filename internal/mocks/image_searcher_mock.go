package mocks

import (
	"context"

	"slide-server/internal/agents"
	"slide-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockImageSearcher is a mock type for the ImageSearcher type
type MockImageSearcher struct {
	mock.Mock
}

// SearchImages provides a mock function with given fields: ctx, query, limit
func (_m *MockImageSearcher) SearchImages(ctx context.Context, query string, limit int) ([]models.ImageReference, error) {
	ret := _m.Called(ctx, query, limit)

	var r0 []models.ImageReference
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.ImageReference)
	}

	return r0, ret.Error(1)
}

// NewMockImageSearcher creates a new instance of MockImageSearcher.
func NewMockImageSearcher(t interface {
	mock.TestingT
	Helper()
}) *MockImageSearcher {
	m := &MockImageSearcher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ agents.ImageSearcher = (*MockImageSearcher)(nil)
