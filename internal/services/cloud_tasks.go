package services

import (
	"context"
	"encoding/json"
	"fmt"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	cloudtaskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

// CloudTasksSecretHeader carries the shared secret the email worker checks.
const CloudTasksSecretHeader = "X-Cloud-Tasks-Secret" //nolint:gosec // header name, not a credential

type CloudTasksService struct {
	client *cloudtasks.Client
	config CloudTasksConfig
}

type CloudTasksConfig struct {
	ProjectID string
	Location  string
	QueueName string
	WorkerURL string
	Secret    string
	// ServiceAccountEmail, when set, makes Cloud Tasks attach an OIDC token.
	ServiceAccountEmail string
}

func NewCloudTasksService(ctx context.Context, config CloudTasksConfig) (*CloudTasksService, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		log.Error(ctx, "Failed to create Cloud Tasks client",
			"error", err,
			"project_id", config.ProjectID,
			"location", config.Location,
			"queue_name", config.QueueName,
			"operation", "create_cloud_tasks_client",
		)
		return nil, fmt.Errorf("failed to create Cloud Tasks client: %w", err)
	}

	return &CloudTasksService{client: client, config: config}, nil
}

func (cts *CloudTasksService) Close() error {
	return cts.client.Close()
}

// EnqueueInvitationEmail schedules delivery of one invitation through the
// email worker.
func (cts *CloudTasksService) EnqueueInvitationEmail(ctx context.Context, job *models.InvitationEmailJob) error {
	req, err := buildEmailTask(cts.config, job)
	if err != nil {
		log.Error(ctx, "Failed to build invitation email task",
			"error", err,
			"email_job_id", job.ID,
			"operation", "build_email_task",
		)
		return err
	}

	createdTask, err := cts.client.CreateTask(ctx, req)
	if err != nil {
		log.Error(ctx, "Failed to create Cloud Tasks task",
			"error", err,
			"email_job_id", job.ID,
			"queue_path", req.GetParent(),
			"worker_url", cts.config.WorkerURL,
			"operation", "create_cloud_tasks_task",
		)
		return fmt.Errorf("failed to create task: %w", err)
	}

	log.Info(ctx, "Invitation email queued",
		"email_job_id", job.ID,
		"task_name", createdTask.GetName(),
	)
	return nil
}

// Dispatch queues the invitation instead of sending it inline.
func (cts *CloudTasksService) Dispatch(ctx context.Context, job *models.InvitationEmailJob) models.InvitationEmailStatus {
	if err := cts.EnqueueInvitationEmail(ctx, job); err != nil {
		return models.InvitationEmailFailed
	}
	return models.InvitationEmailQueued
}

func buildEmailTask(config CloudTasksConfig, job *models.InvitationEmailJob) (*cloudtaskspb.CreateTaskRequest, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	httpReq := &cloudtaskspb.HttpRequest{
		HttpMethod: cloudtaskspb.HttpMethod_POST,
		Url:        config.WorkerURL,
		Headers: map[string]string{
			"Content-Type":         "application/json",
			"X-Job-ID":             job.ID,
			"X-Trace-ID":           job.TraceID,
			CloudTasksSecretHeader: config.Secret,
		},
		Body: payload,
	}
	if config.ServiceAccountEmail != "" {
		httpReq.AuthorizationHeader = &cloudtaskspb.HttpRequest_OidcToken{
			OidcToken: &cloudtaskspb.OidcToken{
				ServiceAccountEmail: config.ServiceAccountEmail,
				Audience:            config.WorkerURL,
			},
		}
	}

	return &cloudtaskspb.CreateTaskRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/queues/%s",
			config.ProjectID, config.Location, config.QueueName),
		Task: &cloudtaskspb.Task{
			MessageType:  &cloudtaskspb.Task_HttpRequest{HttpRequest: httpReq},
			ScheduleTime: timestamppb.Now(),
		},
	}, nil
}
