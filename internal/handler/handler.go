package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"news-agent/internal/logging"
	"news-agent/internal/service"
	"news-agent/internal/settings"
)

// 密钥类配置对外展示的占位符,提交该值表示不修改
const maskedValue = "******"

const heartbeatInterval = 30 * time.Second

// JobTrigger 手动触发任务
type JobTrigger interface {
	Trigger(name string) (string, error)
}

type Handler struct {
	settings  *settings.Store
	status    *service.StatusService
	alerts    *service.AlertService
	live      *service.Broadcaster
	scheduler JobTrigger
	logger    *slog.Logger
}

func NewHandler(store *settings.Store, status *service.StatusService, alerts *service.AlertService, live *service.Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		settings: store,
		status:   status,
		alerts:   alerts,
		live:     live,
		logger:   logger,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler JobTrigger) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		// Status
		api.GET("/status", h.GetStatus)

		// Live
		api.GET("/stream", h.Stream)

		// Jobs
		api.POST("/jobs/:name/run", h.RunJob)

		// Alerts
		api.GET("/alerts", h.ListAlerts)
		api.PUT("/alerts/:id/resolve", h.ResolveAlert)

		// Settings
		api.GET("/settings", h.GetSettings)
		api.POST("/settings", h.SaveSettings)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ===== Status相关 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ===== 实时推送 =====

// Stream 以 SSE 推送新文章和新预警
func (h *Handler) Stream(c *gin.Context) {
	events, cancel := h.live.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.SSEvent("ready", gin.H{"subscribers": h.live.Subscribers()})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev.Data)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// ===== 任务相关 =====

func (h *Handler) RunJob(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}
	name := c.Param("name")
	triggerID, err := h.scheduler.Trigger(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": name, "trigger_id": triggerID})
}

// ===== Alert相关 =====

func (h *Handler) ListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	alerts, err := h.alerts.Active(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts, "total": len(alerts)})
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	alert, err := h.alerts.Resolve(c.Request.Context(), uint(id))
	if errors.Is(err, service.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ===== Settings相关 =====

type settingView struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Category    string `json:"category"`
	Label       string `json:"label"`
	Description string `json:"description"`
	FieldType   string `json:"field_type"`
}

func (h *Handler) GetSettings(c *gin.Context) {
	items, err := h.settings.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]settingView, 0, len(items))
	for _, item := range items {
		value := item.Value
		if settings.IsSecret(item) && value != "" {
			value = maskedValue
		}
		views = append(views, settingView{
			Key:         item.Key,
			Value:       value,
			Category:    item.Category,
			Label:       item.Label,
			Description: item.Description,
			FieldType:   item.FieldType,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) SaveSettings(c *gin.Context) {
	var input map[string]string
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated := 0
	for key, value := range input {
		if key == "" || value == maskedValue {
			continue
		}
		if err := h.settings.Set(c.Request.Context(), key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		updated++
	}
	h.logger.Info("settings updated", "count", updated)
	c.JSON(http.StatusOK, gin.H{"message": "saved", "updated": updated})
}
