package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/card-grader/internal/grading"
	"github.com/example/card-grader/internal/notify"
	"github.com/example/card-grader/internal/repository"
	"github.com/example/card-grader/internal/usecase"
)

// MaxUploadSize bounds a whole multipart grading request (six photos).
const MaxUploadSize int64 = 50 << 20

// ConditionService is the orchestration capability the HTTP layer needs.
type ConditionService interface {
	Check(ctx context.Context, jobID, originHost string, uploads map[string]grading.Upload) (*grading.Report, error)
	GetGrade(ctx context.Context, originHost, hash string) (*repository.CardGrade, error)
	GetGradeSummary(ctx context.Context, originHost string) (*usecase.GradeSummary, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc ConditionService, hub *notify.Hub, authMiddleware gin.HandlerFunc, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/condition-check", authMiddleware, func(c *gin.Context) {
		if c.Request.ContentLength > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request too large"})
			return
		}

		jobID := c.PostForm("job_id")
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
			return
		}

		uploads := make(map[string]grading.Upload, len(grading.SlotKeys))
		for _, slot := range grading.SlotKeys {
			file, err := c.FormFile(slot)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": slot + " is required"})
				return
			}
			src, err := file.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open " + slot})
				return
			}
			data, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + slot})
				return
			}
			uploads[slot] = grading.Upload{Slot: slot, Filename: file.Filename, Data: data}
		}

		report, err := svc.Check(c.Request.Context(), jobID, originHost(c.Request), uploads)
		if err != nil {
			var failure *grading.StageFailure
			if errors.As(err, &failure) {
				c.JSON(failure.Status, gin.H{"error": failure.Detail})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, report)
	})

	router.GET("/condition-check/ws", func(c *gin.Context) {
		jobID := c.Query("job_id")
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}

		hub.Add(jobID, conn)
		defer func() {
			hub.Remove(jobID, conn)
			conn.Close()
		}()

		// Subscribers only listen; drain until the peer goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	router.GET("/grades/:hash", authMiddleware, func(c *gin.Context) {
		hash := c.Param("hash")
		grade, err := svc.GetGrade(c.Request.Context(), originHost(c.Request), hash)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "grade not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hash":               grade.Hash,
			"grade":              grade.GradeCode,
			"physical_card_hash": grade.PhysicalCardHash,
			"created_at":         grade.CreatedAt,
			"updated_at":         grade.UpdatedAt,
		})
	})

	router.GET("/metrics/grades", authMiddleware, func(c *gin.Context) {
		summary, err := svc.GetGradeSummary(c.Request.Context(), originHost(c.Request))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate grades"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// originHost resolves the request's declared origin for store routing.
// Behind the reverse proxy X-Forwarded-Host wins over Host.
func originHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return r.Host
}
