package services

import (
	"encoding/json"
	"testing"

	cloudtaskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-api/internal/models"
)

func TestBuildEmailTask(t *testing.T) {
	job := &models.InvitationEmailJob{
		ID:             "job-1",
		TraceID:        "trace-1",
		SessionID:      "token-1",
		AdminID:        "admin-1",
		To:             "alice@x.com",
		InvitationLink: "http://localhost:3000/employee-onboarding/token-1",
	}
	config := CloudTasksConfig{
		ProjectID: "proj",
		Location:  "europe-west1",
		QueueName: "invitation-emails",
		WorkerURL: "https://api.example/process-email",
		Secret:    "s3cret",
	}

	t.Run("shared secret only", func(t *testing.T) {
		req, err := buildEmailTask(config, job)
		require.NoError(t, err)

		assert.Equal(t, "projects/proj/locations/europe-west1/queues/invitation-emails", req.GetParent())
		httpReq := req.GetTask().GetHttpRequest()
		require.NotNil(t, httpReq)
		assert.Equal(t, cloudtaskspb.HttpMethod_POST, httpReq.GetHttpMethod())
		assert.Equal(t, config.WorkerURL, httpReq.GetUrl())
		assert.Equal(t, "s3cret", httpReq.GetHeaders()[CloudTasksSecretHeader])
		assert.Equal(t, "trace-1", httpReq.GetHeaders()["X-Trace-ID"])
		assert.Nil(t, httpReq.GetOidcToken())

		var decoded models.InvitationEmailJob
		require.NoError(t, json.Unmarshal(httpReq.GetBody(), &decoded))
		assert.Equal(t, *job, decoded)
	})

	t.Run("with service account", func(t *testing.T) {
		withOIDC := config
		withOIDC.ServiceAccountEmail = "tasks@proj.iam.gserviceaccount.com"

		req, err := buildEmailTask(withOIDC, job)
		require.NoError(t, err)

		token := req.GetTask().GetHttpRequest().GetOidcToken()
		require.NotNil(t, token)
		assert.Equal(t, "tasks@proj.iam.gserviceaccount.com", token.GetServiceAccountEmail())
		assert.Equal(t, config.WorkerURL, token.GetAudience())
	})

	t.Run("invalid job", func(t *testing.T) {
		_, err := buildEmailTask(config, &models.InvitationEmailJob{ID: "job-1"})
		assert.ErrorIs(t, err, models.ErrSessionIDRequired)
	})
}
