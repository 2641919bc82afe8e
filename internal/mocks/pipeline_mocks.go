package mocks

import (
	"context"

	"slide-server/internal/models"
	"slide-server/internal/orchestrator"

	"github.com/stretchr/testify/mock"
)

// MockOutlineSynthesizer is a mock type for the OutlineSynthesizer type
type MockOutlineSynthesizer struct {
	mock.Mock
}

// Synthesize provides a mock function with given fields: ctx, brief, sectionCount, slidesPerSection
func (_m *MockOutlineSynthesizer) Synthesize(ctx context.Context, brief models.Brief, sectionCount int, slidesPerSection int) (*models.Outline, error) {
	ret := _m.Called(ctx, brief, sectionCount, slidesPerSection)

	var r0 *models.Outline
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Outline)
	}

	return r0, ret.Error(1)
}

// NewMockOutlineSynthesizer creates a new instance of MockOutlineSynthesizer.
func NewMockOutlineSynthesizer(t interface {
	mock.TestingT
	Helper()
}) *MockOutlineSynthesizer {
	m := &MockOutlineSynthesizer{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ orchestrator.OutlineSynthesizer = (*MockOutlineSynthesizer)(nil)

// MockContentExpander is a mock type for the ContentExpander type
type MockContentExpander struct {
	mock.Mock
}

// Expand provides a mock function with given fields: ctx, brief, outlineTitle, section, stub
func (_m *MockContentExpander) Expand(ctx context.Context, brief models.Brief, outlineTitle string, section models.Section, stub models.SlideStub) (*models.SlideContent, error) {
	ret := _m.Called(ctx, brief, outlineTitle, section, stub)

	var r0 *models.SlideContent
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.SlideContent)
	}

	return r0, ret.Error(1)
}

// Edit provides a mock function with given fields: ctx, brief, current, instruction
func (_m *MockContentExpander) Edit(ctx context.Context, brief models.Brief, current models.SlideContent, instruction string) (*models.SlideContent, error) {
	ret := _m.Called(ctx, brief, current, instruction)

	var r0 *models.SlideContent
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.SlideContent)
	}

	return r0, ret.Error(1)
}

// NewMockContentExpander creates a new instance of MockContentExpander.
func NewMockContentExpander(t interface {
	mock.TestingT
	Helper()
}) *MockContentExpander {
	m := &MockContentExpander{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ orchestrator.ContentExpander = (*MockContentExpander)(nil)

// MockEnricher is a mock type for the Enricher type
type MockEnricher struct {
	mock.Mock
}

// Enrich provides a mock function with given fields: ctx, slide
func (_m *MockEnricher) Enrich(ctx context.Context, slide models.SlideContent) (models.SlideContent, error) {
	ret := _m.Called(ctx, slide)

	var r0 models.SlideContent
	if rf, ok := ret.Get(0).(func(context.Context, models.SlideContent) models.SlideContent); ok {
		r0 = rf(ctx, slide)
	} else {
		r0 = ret.Get(0).(models.SlideContent)
	}

	return r0, ret.Error(1)
}

// NewMockEnricher creates a new instance of MockEnricher.
func NewMockEnricher(t interface {
	mock.TestingT
	Helper()
}) *MockEnricher {
	m := &MockEnricher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ orchestrator.Enricher = (*MockEnricher)(nil)

// PassthroughEnricher возвращает слайд без изменений - для тестов, где
// обогащение не в фокусе.
type PassthroughEnricher struct{}

// Enrich возвращает слайд как есть.
func (PassthroughEnricher) Enrich(_ context.Context, slide models.SlideContent) (models.SlideContent, error) {
	return slide, nil
}

var _ orchestrator.Enricher = PassthroughEnricher{}
