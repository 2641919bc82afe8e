package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slide-server/internal/mocks"
	"slide-server/internal/models"
	"slide-server/internal/orchestrator"
	"slide-server/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type editorFixture struct {
	expander    *mocks.MockContentExpander
	renderer    *mocks.MockRenderer
	store       *session.Store
	editor      *orchestrator.Editor
	sessionPath string
	outputPath  string
}

// newEditorFixture сохраняет сессию с планом 2x2 и собирает редактор поверх нее.
func newEditorFixture(t *testing.T) *editorFixture {
	store, err := session.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	sess := &models.Session{
		Brief: models.Brief{Topic: "Go", Audience: "devs", DurationMinutes: 15, Purpose: "inform"},
		Outline: models.Outline{
			Title: "Deck",
			Sections: []models.Section{
				{Index: 0, Title: "Intro", SlideStubs: []models.SlideStub{{Index: 0, Title: "A"}, {Index: 1, Title: "B"}}},
				{Index: 1, Title: "Body", SlideStubs: []models.SlideStub{{Index: 0, Title: "C"}, {Index: 1, Title: "D"}}},
			},
		},
		Slides: []models.SlideContent{
			{SectionIndex: 0, SlideIndexInSection: 0, Title: "A", Content: []string{"a"}},
			{SectionIndex: 0, SlideIndexInSection: 1, Title: "B", Content: []string{"b"}},
			{SectionIndex: 1, SlideIndexInSection: 0, Title: "C", Content: []string{"c"}},
			{SectionIndex: 1, SlideIndexInSection: 1, Title: "D", Content: []string{"d"}},
		},
		TemplateReference: "modern",
		OutputPath:        filepath.Join(t.TempDir(), "deck.pptx"),
	}
	models.RecomputeGlobalIndexes(sess.Slides)
	require.NoError(t, store.Save(sess))

	f := &editorFixture{
		expander:    mocks.NewMockContentExpander(t),
		renderer:    mocks.NewMockRenderer(t),
		store:       store,
		sessionPath: store.Path(sess.SessionID),
		outputPath:  sess.OutputPath,
	}
	f.editor = orchestrator.NewEditor(
		f.expander,
		mocks.PassthroughEnricher{},
		mocks.PassthroughEnricher{},
		f.renderer,
		store,
		orchestrator.EditorConfig{WorkDir: t.TempDir()},
		zap.NewNop(),
	)
	return f
}

func (f *editorFixture) request() orchestrator.EditRequest {
	return orchestrator.EditRequest{
		SessionPath:  f.sessionPath,
		SectionIndex: 0,
		SlideIndex:   1,
		Instruction:  "сделай короче",
	}
}

func TestEditor_Edit_Success(t *testing.T) {
	f := newEditorFixture(t)

	newContent := &models.SlideContent{
		SectionIndex:        0,
		SlideIndexInSection: 1,
		Title:               "B v2",
		Content:             []string{"короче"},
	}
	f.expander.On("Edit", mock.Anything, mock.Anything, mock.Anything, "сделай короче").
		Return(newContent, nil).Once()
	f.renderer.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil).Once()
	// Вклейка по глобальному индексу правленого слайда, merge поверх исходного файла
	f.renderer.On("ReplaceSlide", mock.Anything, f.outputPath, mock.Anything, 1, f.outputPath).
		Return(nil).Once()

	envelope := f.editor.Edit(context.Background(), f.request())

	require.Equal(t, models.StatusSuccess, envelope.Status)
	assert.Equal(t, "Slide edited successfully", envelope.Message)

	data, ok := envelope.Data.(models.EditData)
	require.True(t, ok)
	assert.Equal(t, 0, data.SectionIndex)
	assert.Equal(t, 1, data.SlideIndex)
	assert.Equal(t, "B v2", data.NewContent.Title)
	assert.Equal(t, 1, data.NewContent.GlobalSlideIndex)
	assert.Equal(t, f.outputPath, data.MergedPresentationPath)

	// Сессия зафиксировала новый контент, соседние слайды не тронуты
	sess, err := session.LoadPath(f.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sess.Version)
	edited, err := sess.FindSlide(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "B v2", edited.Title)
	neighbor, err := sess.FindSlide(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "C", neighbor.Title)

	f.expander.AssertExpectations(t)
	f.renderer.AssertExpectations(t)
}

func TestEditor_Edit_MergeToNewPath(t *testing.T) {
	f := newEditorFixture(t)
	mergedPath := filepath.Join(t.TempDir(), "deck_v2.pptx")

	newContent := &models.SlideContent{SectionIndex: 0, SlideIndexInSection: 1, Title: "B v2", Content: []string{"x"}}
	f.expander.On("Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(newContent, nil).Once()
	f.renderer.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil).Once()
	// Исходная презентация читается, результат пишется в новый файл
	f.renderer.On("ReplaceSlide", mock.Anything, f.outputPath, mock.Anything, 1, mergedPath).
		Return(nil).Once()

	req := f.request()
	req.MergeOutputPath = mergedPath
	envelope := f.editor.Edit(context.Background(), req)

	require.Equal(t, models.StatusSuccess, envelope.Status)
	data := envelope.Data.(models.EditData)
	assert.Equal(t, mergedPath, data.MergedPresentationPath)

	sess, err := session.LoadPath(f.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, mergedPath, sess.OutputPath)
}

func TestEditor_Edit_InvalidAddress(t *testing.T) {
	f := newEditorFixture(t)
	before, err := os.ReadFile(f.sessionPath)
	require.NoError(t, err)

	req := f.request()
	req.SectionIndex = 5
	envelope := f.editor.Edit(context.Background(), req)

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Equal(t, "Invalid section or slide index", envelope.Message)
	f.expander.AssertNotCalled(t, "Edit")

	// Файл сессии байт в байт нетронут
	after, err := os.ReadFile(f.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditor_Edit_SlideNotFound(t *testing.T) {
	f := newEditorFixture(t)

	// Выкидываем контент слайда (1,1): адрес валиден по плану, контента нет
	_, err := f.store.UpdatePath(f.sessionPath, func(s *models.Session) error {
		s.Slides = s.Slides[:3]
		return nil
	})
	require.NoError(t, err)

	req := f.request()
	req.SectionIndex = 1
	req.SlideIndex = 1
	envelope := f.editor.Edit(context.Background(), req)

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Equal(t, "Slide or section not found", envelope.Message)
}

func TestEditor_Edit_ContentFailure(t *testing.T) {
	f := newEditorFixture(t)
	before, err := os.ReadFile(f.sessionPath)
	require.NoError(t, err)

	f.expander.On("Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("provider down")).Once()

	envelope := f.editor.Edit(context.Background(), f.request())

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Equal(t, "Failed to generate new slide content", envelope.Message)
	f.renderer.AssertNotCalled(t, "RenderSlide")

	after, err := os.ReadFile(f.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditor_Edit_RenderFailure(t *testing.T) {
	f := newEditorFixture(t)

	newContent := &models.SlideContent{SectionIndex: 0, SlideIndexInSection: 1, Title: "B v2", Content: []string{"x"}}
	f.expander.On("Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(newContent, nil).Once()
	f.renderer.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return("", errors.New("renderer crashed")).Once()

	envelope := f.editor.Edit(context.Background(), f.request())

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Equal(t, "Failed to generate new slide", envelope.Message)
	f.renderer.AssertNotCalled(t, "ReplaceSlide")
}

func TestEditor_Edit_ReplaceFailure(t *testing.T) {
	f := newEditorFixture(t)
	before, err := os.ReadFile(f.sessionPath)
	require.NoError(t, err)

	newContent := &models.SlideContent{SectionIndex: 0, SlideIndexInSection: 1, Title: "B v2", Content: []string{"x"}}
	f.expander.On("Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(newContent, nil).Once()
	f.renderer.On("RenderSlide", mock.Anything, "modern", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ string, _ models.SlideContent, slidePath string) string {
			return slidePath
		}, nil).Once()
	f.renderer.On("ReplaceSlide", mock.Anything, f.outputPath, mock.Anything, 1, f.outputPath).
		Return(errors.New("merge tool crashed")).Once()

	envelope := f.editor.Edit(context.Background(), f.request())

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Contains(t, envelope.Message, "Error editing slide")
	assert.Contains(t, envelope.Message, "merge tool crashed")

	// Слияние не удалось - сессия не фиксируется
	after, err := os.ReadFile(f.sessionPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEditor_Edit_MissingSession(t *testing.T) {
	f := newEditorFixture(t)

	req := f.request()
	req.SessionPath = filepath.Join(t.TempDir(), "absent.json")
	envelope := f.editor.Edit(context.Background(), req)

	require.Equal(t, models.StatusError, envelope.Status)
	assert.Contains(t, envelope.Message, "Error editing slide")
}
