package mocks

import (
	"context"

	"slide-server/internal/models"
	"slide-server/internal/renderer"

	"github.com/stretchr/testify/mock"
)

// MockRenderer is a mock type for the Renderer type
type MockRenderer struct {
	mock.Mock
}

// ListTemplates provides a mock function with given fields: ctx
func (_m *MockRenderer) ListTemplates(ctx context.Context) ([]string, error) {
	ret := _m.Called(ctx)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0, ret.Error(1)
}

// RenderSlide provides a mock function with given fields: ctx, template, slide, outputPath
func (_m *MockRenderer) RenderSlide(ctx context.Context, template string, slide models.SlideContent, outputPath string) (string, error) {
	ret := _m.Called(ctx, template, slide, outputPath)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, models.SlideContent, string) string); ok {
		r0 = rf(ctx, template, slide, outputPath)
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0, ret.Error(1)
}

// MergeSlides provides a mock function with given fields: ctx, slidePaths, outputPath
func (_m *MockRenderer) MergeSlides(ctx context.Context, slidePaths []string, outputPath string) error {
	ret := _m.Called(ctx, slidePaths, outputPath)
	return ret.Error(0)
}

// ReplaceSlide provides a mock function with given fields: ctx, presentationPath, slidePath, slideIndex, outputPath
func (_m *MockRenderer) ReplaceSlide(ctx context.Context, presentationPath string, slidePath string, slideIndex int, outputPath string) error {
	ret := _m.Called(ctx, presentationPath, slidePath, slideIndex, outputPath)
	return ret.Error(0)
}

// ConvertToPDF provides a mock function with given fields: ctx, presentationPath, outputPath
func (_m *MockRenderer) ConvertToPDF(ctx context.Context, presentationPath string, outputPath string) error {
	ret := _m.Called(ctx, presentationPath, outputPath)
	return ret.Error(0)
}

// NewMockRenderer creates a new instance of MockRenderer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockRenderer(t interface {
	mock.TestingT
	Helper()
}) *MockRenderer {
	m := &MockRenderer{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ renderer.Renderer = (*MockRenderer)(nil)
