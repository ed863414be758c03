package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/idtoken"

	"onboarding-api/internal/log"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc, path string) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET(path, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"trace_id": log.TraceID(c.Request.Context()),
			"uid":      c.GetString(AuthUIDKey),
		})
	})
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoggingMiddleware_TraceID(t *testing.T) {
	router := newRouter(LoggingMiddleware(), "/")

	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{
			name:     "cloud run trace header",
			headers:  map[string]string{"X-Cloud-Trace-Context": "abc123/456;o=1"},
			expected: "abc123",
		},
		{
			name:     "explicit trace header",
			headers:  map[string]string{"X-Trace-ID": "trace-7"},
			expected: "trace-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			w := serve(router, req)

			assert.Equal(t, tt.expected, w.Header().Get("X-Trace-ID"))
			assert.Contains(t, w.Body.String(), `"trace_id":"`+tt.expected+`"`)
		})
	}

	t.Run("generated when absent", func(t *testing.T) {
		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, w.Header().Get("X-Trace-ID"), 36)
	})
}

func TestCloudTasksAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		configured     string
		provided       string
		expectedStatus int
	}{
		{name: "valid secret", configured: "s3cret", provided: "s3cret", expectedStatus: http.StatusOK},
		{name: "missing header", configured: "s3cret", expectedStatus: http.StatusUnauthorized},
		{name: "wrong secret", configured: "s3cret", provided: "guess", expectedStatus: http.StatusUnauthorized},
		{name: "unconfigured secret", configured: "", provided: "anything", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(CloudTasksAuthMiddleware(tt.configured), "/")
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.provided != "" {
				req.Header.Set("X-Cloud-Tasks-Secret", tt.provided)
			}

			w := serve(router, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				assert.Contains(t, w.Body.String(), `"detail"`)
			}
		})
	}
}

func TestOIDCMiddleware(t *testing.T) {
	validator := func(claims map[string]interface{}, err error) OIDCValidator {
		return func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
			if err != nil {
				return nil, err
			}
			assert.Equal(t, "good-token", token)
			assert.Equal(t, "https://api.example/process-email", audience)
			return &idtoken.Payload{Audience: audience, Claims: claims}, nil
		}
	}
	const sa = "tasks@proj.iam.gserviceaccount.com"

	tests := []struct {
		name           string
		serviceAccount string
		header         string
		validate       OIDCValidator
		expectedStatus int
	}{
		{
			name:           "disabled without service account",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid token",
			serviceAccount: sa,
			header:         "Bearer good-token",
			validate:       validator(map[string]interface{}{"email": sa, "email_verified": true}, nil),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			serviceAccount: sa,
			validate:       validator(nil, nil),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong service account",
			serviceAccount: sa,
			header:         "Bearer good-token",
			validate:       validator(map[string]interface{}{"email": "other@proj.iam.gserviceaccount.com"}, nil),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unverified email",
			serviceAccount: sa,
			header:         "Bearer good-token",
			validate:       validator(map[string]interface{}{"email": sa, "email_verified": false}, nil),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "validation error",
			serviceAccount: sa,
			header:         "Bearer good-token",
			validate:       validator(nil, errors.New("expired")),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(OIDCMiddleware(OIDCConfig{
				ServiceAccountEmail: tt.serviceAccount,
				Audience:            "https://api.example/process-email",
				Validate:            tt.validate,
			}), "/")
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := serve(router, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if token, ok := f[idToken]; ok {
		return token, nil
	}
	return nil, errors.New("invalid token")
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	verifier := fakeVerifier{
		"admin-token":    {UID: "admin-1", Claims: map[string]interface{}{"role": "admin"}},
		"employee-token": {UID: "emp-1", Claims: map[string]interface{}{"role": "employee"}},
	}

	tests := []struct {
		name           string
		requiredRole   string
		path           string
		header         string
		expectedStatus int
		expectedUID    string
	}{
		{
			name:           "admin on own scope",
			requiredRole:   "admin",
			path:           "/repositories/admin-1",
			header:         "Bearer admin-token",
			expectedStatus: http.StatusOK,
			expectedUID:    "admin-1",
		},
		{
			name:           "admin on another scope",
			requiredRole:   "admin",
			path:           "/repositories/admin-2",
			header:         "Bearer admin-token",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "employee on admin route",
			requiredRole:   "admin",
			path:           "/repositories/emp-1",
			header:         "Bearer employee-token",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "no role required",
			path:           "/repositories/emp-1",
			header:         "Bearer employee-token",
			expectedStatus: http.StatusOK,
			expectedUID:    "emp-1",
		},
		{
			name:           "unknown token",
			requiredRole:   "admin",
			path:           "/repositories/admin-1",
			header:         "Bearer forged",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing header",
			requiredRole:   "admin",
			path:           "/repositories/admin-1",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(FirebaseAuthMiddleware(verifier, tt.requiredRole), "/repositories/:adminId")
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := serve(router, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedUID != "" {
				assert.Contains(t, w.Body.String(), `"uid":"`+tt.expectedUID+`"`)
			}
		})
	}
}

func TestCallerMatches(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.True(t, CallerMatches(c, "anyone"))

	c.Set(AuthUIDKey, "admin-1")
	assert.True(t, CallerMatches(c, "admin-1"))
	assert.False(t, CallerMatches(c, "admin-2"))
}
