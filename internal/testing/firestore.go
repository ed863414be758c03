package testing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"onboarding-api/internal/models"
)

const (
	emulatorHostEnv     = "FIRESTORE_EMULATOR_HOST"
	emulatorStartupTime = 10 * time.Second
	readinessPoll       = 150 * time.Millisecond
	resetTimeout        = 10 * time.Second
)

// ErrEmulatorNotReady is returned when a started emulator never accepts connections.
var ErrEmulatorNotReady = errors.New("firestore emulator not ready")

// FirestoreEmulator is a Firestore emulator project private to one test,
// with helpers that seed onboarding data the way the API lays it out.
type FirestoreEmulator struct {
	Host      string
	ProjectID string
	Client    *firestore.Client

	t   testing.TB
	cmd *exec.Cmd
}

// SetupFirestoreEmulator connects to FIRESTORE_EMULATOR_HOST, or starts a
// local emulator with gcloud, and returns a client scoped to a fresh
// project. The test is skipped when no emulator can be reached.
func SetupFirestoreEmulator(t testing.TB) (*FirestoreEmulator, context.Context) {
	t.Helper()

	ctx := context.Background()
	e := &FirestoreEmulator{
		ProjectID: "onboarding-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		t:         t,
	}
	t.Cleanup(e.stop)

	e.Host = os.Getenv(emulatorHostEnv)
	if e.Host == "" {
		if err := e.start(t); err != nil {
			t.Skipf("Firestore emulator unavailable: %v", err)
		}
	}

	conn, err := grpc.Dial(e.Host, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Skipf("Firestore emulator unreachable at %s: %v", e.Host, err)
	}
	client, err := firestore.NewClient(ctx, e.ProjectID, option.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		t.Skipf("Firestore client for emulator: %v", err)
	}
	e.Client = client

	if err := e.Reset(ctx); err != nil {
		t.Logf("Emulator reset failed, continuing with project %s: %v", e.ProjectID, err)
	}
	return e, ctx
}

// start launches `gcloud emulators firestore start` on a free port.
func (e *FirestoreEmulator) start(t testing.TB) error {
	if _, err := exec.LookPath("gcloud"); err != nil {
		return fmt.Errorf("gcloud not found: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("reserve port: %w", err)
	}
	e.Host = listener.Addr().String()
	_ = listener.Close()

	// #nosec G204 -- fixed arguments
	e.cmd = exec.Command("gcloud", "emulators", "firestore", "start", "--host-port", e.Host)
	if err := e.cmd.Start(); err != nil {
		e.cmd = nil
		return fmt.Errorf("start emulator: %w", err)
	}
	t.Setenv(emulatorHostEnv, e.Host)

	deadline := time.Now().Add(emulatorStartupTime)
	for time.Now().Before(deadline) {
		if conn, err := net.DialTimeout("tcp", e.Host, readinessPoll); err == nil {
			_ = conn.Close()
			t.Logf("Started Firestore emulator at %s", e.Host)
			return nil
		}
		time.Sleep(readinessPoll)
	}
	return fmt.Errorf("%w after %s", ErrEmulatorNotReady, emulatorStartupTime)
}

func (e *FirestoreEmulator) stop() {
	if e.Client != nil {
		_ = e.Client.Close()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
}

// Reset deletes every document in the test's project.
func (e *FirestoreEmulator) Reset(ctx context.Context) error {
	url := fmt.Sprintf("http://%s/emulator/v1/projects/%s/databases/(default)/documents", e.Host, e.ProjectID)

	ctx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A project that has never been written to answers 404 or 500.
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusInternalServerError:
		return nil
	default:
		return fmt.Errorf("reset emulator: status %d", resp.StatusCode)
	}
}

func (e *FirestoreEmulator) adminDoc(adminID string) *firestore.DocumentRef {
	return e.Client.Collection(models.CollectionAdmins).Doc(adminID)
}

// SeedAdmin writes the user mirror of an admin.
func (e *FirestoreEmulator) SeedAdmin(ctx context.Context, adminID, name string) *models.User {
	e.t.Helper()

	now := time.Now().UTC()
	admin := &models.User{
		ID:        adminID,
		Name:      name,
		Email:     adminID + "@example.com",
		Role:      models.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := e.Client.Collection(models.CollectionUsers).Doc(adminID).Set(ctx, admin)
	require.NoError(e.t, err, "seed admin %s", adminID)
	return admin
}

// SeedRepository writes a repository under adminID with a generated ID.
func (e *FirestoreEmulator) SeedRepository(ctx context.Context, adminID, name string) *models.Repository {
	e.t.Helper()

	ref := e.adminDoc(adminID).Collection(models.CollectionRepositories).NewDoc()
	now := time.Now().UTC()
	repo := &models.Repository{
		ID:        ref.ID,
		Name:      name,
		URL:       "https://github.com/acme/" + name,
		Status:    models.RepositoryStatusSynced,
		LastSync:  now,
		AdminID:   adminID,
		CreatedAt: now,
	}
	_, err := ref.Create(ctx, repo)
	require.NoError(e.t, err, "seed repository %s for %s", name, adminID)
	return repo
}

// SeedSession writes a session together with its token index entry.
func (e *FirestoreEmulator) SeedSession(ctx context.Context, session *models.OnboardingSession) {
	e.t.Helper()

	e.SeedLegacySession(ctx, session)
	entry := &models.TokenIndexEntry{
		Token:     session.ID,
		AdminID:   session.AdminID,
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	}
	_, err := e.Client.Collection(models.CollectionTokens).Doc(session.ID).Set(ctx, entry)
	require.NoError(e.t, err, "seed token index entry %s", session.ID)
}

// SeedLegacySession writes a session without a token index entry, the shape
// of sessions created before the index existed.
func (e *FirestoreEmulator) SeedLegacySession(ctx context.Context, session *models.OnboardingSession) {
	e.t.Helper()

	_, err := e.adminDoc(session.AdminID).Collection(models.CollectionSessions).Doc(session.ID).Set(ctx, session)
	require.NoError(e.t, err, "seed session %s for %s", session.ID, session.AdminID)
}

// HasTokenEntry reports whether the token index holds token.
func (e *FirestoreEmulator) HasTokenEntry(ctx context.Context, token string) bool {
	e.t.Helper()

	_, err := e.Client.Collection(models.CollectionTokens).Doc(token).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false
	}
	require.NoError(e.t, err, "read token index entry %s", token)
	return true
}
