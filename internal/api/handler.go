// Package api - HTTP API сервера генерации презентаций.
// Генерация и правка выполняются асинхронно через менеджер задач,
// клиент опрашивает статус задачи и забирает конверт результата.
package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"slide-server/internal/models"
	"slide-server/internal/orchestrator"
	"slide-server/internal/renderer"
	"slide-server/internal/repository"
	"slide-server/internal/session"
	"slide-server/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresentationHandler обрабатывает HTTP запросы пайплайна презентаций.
type PresentationHandler struct {
	generator *orchestrator.Generator
	editor    *orchestrator.Editor
	sessions  *session.Store
	renderer  renderer.Renderer
	runs      repository.RunRepository // nil = журнал запусков выключен
	tasks     taskmanager.ITaskManager
	outputDir string
	logger    *zap.Logger
}

// NewPresentationHandler создает обработчик API.
func NewPresentationHandler(
	generator *orchestrator.Generator,
	editor *orchestrator.Editor,
	sessions *session.Store,
	rend renderer.Renderer,
	runs repository.RunRepository,
	tasks taskmanager.ITaskManager,
	outputDir string,
	logger *zap.Logger,
) *PresentationHandler {
	return &PresentationHandler{
		generator: generator,
		editor:    editor,
		sessions:  sessions,
		renderer:  rend,
		runs:      runs,
		tasks:     tasks,
		outputDir: outputDir,
		logger:    logger.Named("PresentationHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *PresentationHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/presentations", h.generatePresentation)
		v1.POST("/presentations/edit", h.editSlide)
		v1.GET("/tasks/:id", h.getTask)
		v1.DELETE("/tasks/:id", h.cancelTask)
		v1.GET("/sessions/:id", h.getSession)
		v1.GET("/sessions/:id/download", h.downloadPresentation)
		v1.GET("/sessions/:id/runs", h.listRuns)
		v1.GET("/templates", h.listTemplates)
	}
}

// generateRequest - тело запроса на генерацию презентации.
type generateRequest struct {
	Topic           string `json:"topic" binding:"required"`
	Audience        string `json:"audience"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0"`
	Purpose         string `json:"purpose"`
	Template        string `json:"template" binding:"required"`
	OutputPath      string `json:"output_path"`
	Sequential      bool   `json:"sequential"` // по умолчанию слайды идут параллельно
	PDF             bool   `json:"pdf"`
}

// editRequest - тело запроса на правку одного слайда.
type editRequest struct {
	SessionID       string `json:"session_id"`
	SessionPath     string `json:"session_path"`
	SectionIndex    *int   `json:"section_index" binding:"required"`
	SlideIndex      *int   `json:"slide_index" binding:"required"`
	Prompt          string `json:"prompt" binding:"required"`
	MergeOutputPath string `json:"merge_output_path"`
}

// taskResponse - статус асинхронной задачи.
type taskResponse struct {
	TaskID    string      `json:"task_id"`
	Status    string      `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// generatePresentation ставит задачу генерации и возвращает ее ID.
func (h *PresentationHandler) generatePresentation(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorEnvelope("Invalid request body: "+err.Error()))
		return
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(h.outputDir, uuid.NewString()+".pptx")
	}

	genReq := orchestrator.GenerationRequest{
		Brief: models.Brief{
			Topic:             req.Topic,
			Audience:          req.Audience,
			DurationMinutes:   req.DurationMinutes,
			Purpose:           req.Purpose,
			TemplateReference: req.Template,
		},
		OutputPath: outputPath,
		Parallel:   !req.Sequential,
		PDF:        req.PDF,
	}

	taskID, err := h.tasks.SubmitTask(c.Request.Context(), func(ctx context.Context, _ interface{}) (interface{}, error) {
		start := time.Now()
		envelope := h.generator.Generate(ctx, genReq)
		h.saveRun(models.RunKindGenerate, genReq.Brief.Topic, envelope, start)
		return envelope, nil
	}, nil)
	if err != nil {
		c.JSON(http.StatusTooManyRequests, models.NewErrorEnvelope(err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID.String(), "status": string(taskmanager.TaskStatusPending)})
}

// editSlide ставит задачу правки одного слайда и возвращает ее ID.
func (h *PresentationHandler) editSlide(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorEnvelope("Invalid request body: "+err.Error()))
		return
	}

	sessionPath := req.SessionPath
	if sessionPath == "" {
		if req.SessionID == "" {
			c.JSON(http.StatusBadRequest, models.NewErrorEnvelope("Either session_id or session_path is required"))
			return
		}
		sessionPath = h.sessions.Path(req.SessionID)
	}

	editReq := orchestrator.EditRequest{
		SessionPath:     sessionPath,
		SectionIndex:    *req.SectionIndex,
		SlideIndex:      *req.SlideIndex,
		Instruction:     req.Prompt,
		MergeOutputPath: req.MergeOutputPath,
	}

	taskID, err := h.tasks.SubmitTask(c.Request.Context(), func(ctx context.Context, _ interface{}) (interface{}, error) {
		start := time.Now()
		envelope := h.editor.Edit(ctx, editReq)
		h.saveRun(models.RunKindEdit, "", envelope, start)
		return envelope, nil
	}, nil)
	if err != nil {
		c.JSON(http.StatusTooManyRequests, models.NewErrorEnvelope(err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID.String(), "status": string(taskmanager.TaskStatusPending)})
}

// getTask возвращает статус асинхронной задачи.
func (h *PresentationHandler) getTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorEnvelope("Invalid task ID"))
		return
	}

	task, err := h.tasks.GetTask(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.NewErrorEnvelope("Task not found"))
		return
	}

	c.JSON(http.StatusOK, taskResponse{
		TaskID:    task.ID.String(),
		Status:    string(task.Status),
		Progress:  task.Progress,
		Message:   task.Message,
		Result:    task.Result,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	})
}

// cancelTask отменяет выполнение задачи.
func (h *PresentationHandler) cancelTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorEnvelope("Invalid task ID"))
		return
	}

	if err := h.tasks.CancelTask(taskID); err != nil {
		c.JSON(http.StatusConflict, models.NewErrorEnvelope(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": taskID.String(), "status": string(taskmanager.TaskStatusCancelled)})
}

// getSession возвращает сохраненную сессию генерации.
func (h *PresentationHandler) getSession(c *gin.Context) {
	sess, err := h.sessions.Load(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorEnvelope("Session not found"))
			return
		}
		h.logger.Error("Ошибка загрузки сессии", zap.String("session_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.NewErrorEnvelope("Failed to load session"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessEnvelope("Session loaded", sess))
}

// downloadPresentation отдает собранный файл презентации сессии.
func (h *PresentationHandler) downloadPresentation(c *gin.Context) {
	sess, err := h.sessions.Load(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorEnvelope("Session not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, models.NewErrorEnvelope("Failed to load session"))
		return
	}
	c.FileAttachment(sess.OutputPath, filepath.Base(sess.OutputPath))
}

// listRuns возвращает журнал запусков по сессии (если настроен PostgreSQL).
func (h *PresentationHandler) listRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotImplemented, models.NewErrorEnvelope("Run journal is not configured"))
		return
	}
	records, err := h.runs.ListBySessionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Ошибка чтения журнала запусков", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.NewErrorEnvelope("Failed to list runs"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessEnvelope("Runs loaded", records))
}

// listTemplates возвращает список шаблонов рендерера.
func (h *PresentationHandler) listTemplates(c *gin.Context) {
	templates, err := h.renderer.ListTemplates(c.Request.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка шаблонов", zap.Error(err))
		c.JSON(http.StatusBadGateway, models.NewErrorEnvelope("Failed to list templates"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessEnvelope("Templates loaded", templates))
}

// saveRun пишет строку журнала запусков. Ошибки журнала не влияют на результат.
func (h *PresentationHandler) saveRun(kind, topic string, envelope models.Envelope, start time.Time) {
	if h.runs == nil {
		return
	}

	record := models.NewRunRecord(uuid.NewString(), kind, topic, envelope, start)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.runs.Save(ctx, record); err != nil {
		h.logger.Error("Не удалось сохранить запись журнала запусков",
			zap.String("kind", kind), zap.Error(err))
	}
}
