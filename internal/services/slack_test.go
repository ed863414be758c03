package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-api/internal/models"
)

const testWebhookURL = "https://hooks.slack.com/services/T000/B000/XXXX"

func newMockedNotifier(t *testing.T, webhookURL string) (*SlackNotifier, *httpmock.MockTransport, *[]map[string]interface{}) {
	t.Helper()

	mock := httpmock.NewMockTransport()
	var payloads []map[string]interface{}
	mock.RegisterResponder(http.MethodPost, testWebhookURL, func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		payloads = append(payloads, payload)
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	return NewSlackNotifier(webhookURL, &http.Client{Transport: mock}), mock, &payloads
}

func TestSlackNotifier_InvitationClaimed(t *testing.T) {
	notifier, mock, payloads := newMockedNotifier(t, testWebhookURL)
	session := &models.OnboardingSession{ID: "token-1", Email: "alice@x.com", Role: "engineer"}

	notifier.InvitationClaimed(context.Background(), session, "Alice")

	assert.Equal(t, 1, mock.GetTotalCallCount())
	require.Len(t, *payloads, 1)
	assert.Equal(t,
		":wave: Alice (alice@x.com) accepted the invitation for *engineer* and started onboarding.",
		(*payloads)[0]["text"],
	)
	assert.Len(t, (*payloads)[0]["blocks"], 2)
}

func TestSlackNotifier_OnboardingCompleted(t *testing.T) {
	notifier, mock, payloads := newMockedNotifier(t, testWebhookURL)
	session := &models.OnboardingSession{ID: "token-1", Email: "alice@x.com", Role: "engineer"}

	notifier.OnboardingCompleted(context.Background(), session)

	assert.Equal(t, 1, mock.GetTotalCallCount())
	require.Len(t, *payloads, 1)
	assert.Equal(t, ":tada: alice@x.com completed onboarding for *engineer*.", (*payloads)[0]["text"])
}

func TestSlackNotifier_DisabledWithoutWebhook(t *testing.T) {
	notifier, mock, _ := newMockedNotifier(t, "")

	notifier.OnboardingCompleted(context.Background(), &models.OnboardingSession{ID: "token-1"})

	assert.Equal(t, 0, mock.GetTotalCallCount())
}

func TestSlackNotifier_WebhookFailureIsSwallowed(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodPost, testWebhookURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, "invalid_payload"))
	notifier := NewSlackNotifier(testWebhookURL, &http.Client{Transport: mock})

	assert.NotPanics(t, func() {
		notifier.InvitationClaimed(context.Background(), &models.OnboardingSession{ID: "token-1"}, "")
	})
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestSlackNotifier_EscapesControlSequences(t *testing.T) {
	notifier, _, payloads := newMockedNotifier(t, testWebhookURL)
	session := &models.OnboardingSession{
		ID:    "token-1",
		Email: "alice@x.com",
		Role:  "<!channel> & <https://evil.example|click>",
	}

	notifier.InvitationClaimed(context.Background(), session, "<@U123>")
	notifier.OnboardingCompleted(context.Background(), session)

	require.Len(t, *payloads, 2)
	assert.Equal(t,
		":wave: &lt;@U123&gt; (alice@x.com) accepted the invitation for "+
			"*&lt;!channel&gt; &amp; &lt;https://evil.example|click&gt;* and started onboarding.",
		(*payloads)[0]["text"],
	)
	assert.Equal(t,
		":tada: alice@x.com completed onboarding for *&lt;!channel&gt; &amp; &lt;https://evil.example|click&gt;*.",
		(*payloads)[1]["text"],
	)
}
