package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
	"onboarding-api/internal/services"
)

const (
	emailRetryCountWarningThreshold = 5
	emailProcessingTimeout          = 60 * time.Second
)

// InvitationSender delivers one invitation email.
type InvitationSender interface {
	SendInvitation(ctx context.Context, job *models.InvitationEmailJob) bool
}

// EmailWorkerHandler delivers invitation emails queued through Cloud Tasks.
type EmailWorkerHandler struct {
	sender   InvitationSender
	sessions services.SessionStore
}

// NewEmailWorkerHandler creates an EmailWorkerHandler.
func NewEmailWorkerHandler(sender InvitationSender, sessions services.SessionStore) *EmailWorkerHandler {
	return &EmailWorkerHandler{sender: sender, sessions: sessions}
}

// ProcessEmail handles POST /process-email. A 5xx answer makes Cloud Tasks
// retry; anything else acknowledges the task.
func (h *EmailWorkerHandler) ProcessEmail(c *gin.Context) {
	startTime := time.Now()

	var job models.InvitationEmailJob
	if err := c.ShouldBindJSON(&job); err != nil {
		log.Error(c.Request.Context(), "Invalid email job payload - JSON binding failed",
			"error", err,
			"content_type", c.ContentType(),
			"content_length", c.Request.ContentLength,
		)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid job payload"})
		return
	}

	retryCount, _ := strconv.Atoi(c.GetHeader("X-Cloudtasks-Taskretrycount"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), emailProcessingTimeout)
	defer cancel()

	ctx = log.WithFields(ctx, log.LogFields{
		"email_job_id":         job.ID,
		"session_id":           job.SessionID,
		"admin_id":             job.AdminID,
		"job_trace_id":         job.TraceID,
		"retry_count":          retryCount,
		"task_execution_count": c.GetHeader("X-Cloudtasks-Taskexecutioncount"),
	})

	if err := job.Validate(); err != nil {
		log.Error(ctx, "Invalid email job, dropping", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if retryCount > emailRetryCountWarningThreshold {
		log.Warn(ctx, "High retry count for email job", "retry_threshold", emailRetryCountWarningThreshold)
	}

	session, err := h.sessions.GetSession(ctx, job.AdminID, job.SessionID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Info(ctx, "Session deleted before invitation was sent, dropping job")
		c.JSON(http.StatusOK, gin.H{"status": "session_deleted"})
		return
	case err != nil:
		log.Error(ctx, "Failed to load session for email job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load session"})
		return
	case session.InvitationEmail == models.InvitationEmailSent:
		log.Info(ctx, "Invitation already sent, acknowledging duplicate task")
		c.JSON(http.StatusOK, gin.H{"status": "already_sent"})
		return
	}

	if !h.sender.SendInvitation(ctx, &job) {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to send invitation"})
		return
	}

	_, err = h.sessions.UpdateSession(ctx, job.AdminID, job.SessionID, func(s *models.OnboardingSession) error {
		s.InvitationEmail = models.InvitationEmailSent
		return nil
	})
	if err != nil {
		// The email went out; a retry would send it twice.
		log.Warn(ctx, "Failed to record sent invitation", "error", err)
	}

	log.Info(ctx, "Email job processed successfully",
		"processing_time_ms", time.Since(startTime).Milliseconds(),
	)
	c.JSON(http.StatusOK, gin.H{
		"status":             "processed",
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	})
}
