package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"onboarding-api/internal/log"
	"onboarding-api/internal/models"
)

const (
	collectionUsers        = models.CollectionUsers
	collectionAdmins       = models.CollectionAdmins
	collectionRepositories = models.CollectionRepositories
	collectionSessions     = models.CollectionSessions
	collectionTokens       = models.CollectionTokens
)

// Sentinel errors for not found cases.
var (
	ErrUserNotFound       = fmt.Errorf("user %w", models.ErrNotFound)
	ErrRepositoryNotFound = fmt.Errorf("repository %w", models.ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("onboarding session %w", models.ErrNotFound)
)

// FirestoreService provides database operations for Firestore.
type FirestoreService struct {
	client *firestore.Client
}

// NewFirestoreService creates a new FirestoreService with the provided client.
func NewFirestoreService(client *firestore.Client) *FirestoreService {
	return &FirestoreService{client: client}
}

// validDocID rejects IDs that Firestore would treat as a path or refuse outright.
func validDocID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.Contains(id, "/")
}

func (fs *FirestoreService) repositories(adminID string) *firestore.CollectionRef {
	return fs.client.Collection(collectionAdmins).Doc(adminID).Collection(collectionRepositories)
}

func (fs *FirestoreService) sessions(adminID string) *firestore.CollectionRef {
	return fs.client.Collection(collectionAdmins).Doc(adminID).Collection(collectionSessions)
}

// GetUser retrieves a user mirror by identity uid.
func (fs *FirestoreService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if !validDocID(userID) {
		return nil, ErrUserNotFound
	}

	doc, err := fs.client.Collection(collectionUsers).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		log.Error(ctx, "Failed to get user",
			"error", err,
			"user_id", userID,
			"operation", "get_user",
		)
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		log.Error(ctx, "Failed to unmarshal user data",
			"error", err,
			"user_id", userID,
			"operation", "unmarshal_user_data",
		)
		return nil, fmt.Errorf("failed to unmarshal user data for %s: %w", userID, err)
	}

	return &user, nil
}

// SaveUser creates or overwrites a user mirror.
func (fs *FirestoreService) SaveUser(ctx context.Context, user *models.User) error {
	if !validDocID(user.ID) {
		return fmt.Errorf("%w: invalid user id %q", models.ErrValidation, user.ID)
	}

	now := time.Now()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	if _, err := fs.client.Collection(collectionUsers).Doc(user.ID).Set(ctx, user); err != nil {
		log.Error(ctx, "Failed to save user",
			"error", err,
			"user_id", user.ID,
			"role", user.Role,
			"operation", "save_user",
		)
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	return nil
}

// CreateRepository stores a repository under its admin, assigning a generated ID.
func (fs *FirestoreService) CreateRepository(ctx context.Context, repo *models.Repository) error {
	if !validDocID(repo.AdminID) {
		return fmt.Errorf("%w: invalid admin id %q", models.ErrValidation, repo.AdminID)
	}

	ref := fs.repositories(repo.AdminID).NewDoc()
	repo.ID = ref.ID

	if _, err := ref.Create(ctx, repo); err != nil {
		log.Error(ctx, "Failed to create repository",
			"error", err,
			"admin_id", repo.AdminID,
			"repository_name", repo.Name,
			"operation", "create_repository",
		)
		return fmt.Errorf("failed to create repository %s for admin %s: %w", repo.Name, repo.AdminID, err)
	}

	log.Info(ctx, "Repository created",
		"admin_id", repo.AdminID,
		"repository_id", repo.ID,
	)
	return nil
}

// ListRepositories returns every repository under an admin.
func (fs *FirestoreService) ListRepositories(ctx context.Context, adminID string) ([]*models.Repository, error) {
	if !validDocID(adminID) {
		return []*models.Repository{}, nil
	}

	iter := fs.repositories(adminID).Documents(ctx)
	defer iter.Stop()

	repos := []*models.Repository{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error(ctx, "Failed to list repositories",
				"error", err,
				"admin_id", adminID,
				"operation", "list_repositories",
			)
			return nil, fmt.Errorf("failed to list repositories for admin %s: %w", adminID, err)
		}

		var repo models.Repository
		if err := doc.DataTo(&repo); err != nil {
			log.Error(ctx, "Failed to unmarshal repository data",
				"error", err,
				"admin_id", adminID,
				"repository_id", doc.Ref.ID,
				"operation", "unmarshal_repository_data",
			)
			return nil, fmt.Errorf("failed to unmarshal repository %s: %w", doc.Ref.ID, err)
		}
		repos = append(repos, &repo)
	}

	return repos, nil
}

// GetRepositories loads the listed repositories, silently skipping any that no
// longer exist.
func (fs *FirestoreService) GetRepositories(ctx context.Context, adminID string, ids []string) ([]*models.Repository, error) {
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	if validDocID(adminID) {
		for _, id := range ids {
			if validDocID(id) {
				refs = append(refs, fs.repositories(adminID).Doc(id))
			}
		}
	}
	if len(refs) == 0 {
		return []*models.Repository{}, nil
	}

	snaps, err := fs.client.GetAll(ctx, refs)
	if err != nil {
		log.Error(ctx, "Failed to get repositories",
			"error", err,
			"admin_id", adminID,
			"repository_count", len(refs),
			"operation", "get_repositories",
		)
		return nil, fmt.Errorf("failed to get repositories for admin %s: %w", adminID, err)
	}

	repos := make([]*models.Repository, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var repo models.Repository
		if err := snap.DataTo(&repo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal repository %s: %w", snap.Ref.ID, err)
		}
		repos = append(repos, &repo)
	}
	return repos, nil
}

// DeleteRepository removes a repository. Sessions referencing it are left as they are.
func (fs *FirestoreService) DeleteRepository(ctx context.Context, adminID, repoID string) error {
	if !validDocID(adminID) || !validDocID(repoID) {
		return ErrRepositoryNotFound
	}

	_, err := fs.repositories(adminID).Doc(repoID).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrRepositoryNotFound
		}
		log.Error(ctx, "Failed to delete repository",
			"error", err,
			"admin_id", adminID,
			"repository_id", repoID,
			"operation", "delete_repository",
		)
		return fmt.Errorf("failed to delete repository %s for admin %s: %w", repoID, adminID, err)
	}

	log.Info(ctx, "Repository deleted", "admin_id", adminID, "repository_id", repoID)
	return nil
}

// CreateSession checks that every referenced repository exists under the
// session's admin and writes the session plus its token index entry, all in one
// transaction.
func (fs *FirestoreService) CreateSession(ctx context.Context, session *models.OnboardingSession) error {
	if !validDocID(session.AdminID) {
		return fmt.Errorf("%w: invalid admin id %q", models.ErrValidation, session.AdminID)
	}
	if !validDocID(session.ID) {
		return fmt.Errorf("%w: invalid session id %q", models.ErrValidation, session.ID)
	}

	repoRefs := make([]*firestore.DocumentRef, 0, len(session.RepositoryIDs))
	for _, id := range session.RepositoryIDs {
		if !validDocID(id) {
			return fmt.Errorf("%w: repository %s not found for admin %s", models.ErrValidation, id, session.AdminID)
		}
		repoRefs = append(repoRefs, fs.repositories(session.AdminID).Doc(id))
	}

	sessionRef := fs.sessions(session.AdminID).Doc(session.ID)
	tokenRef := fs.client.Collection(collectionTokens).Doc(session.ID)

	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if len(repoRefs) > 0 {
			snaps, err := tx.GetAll(repoRefs)
			if err != nil {
				return fmt.Errorf("failed to read repositories: %w", err)
			}
			for i, snap := range snaps {
				if !snap.Exists() {
					return fmt.Errorf("%w: repository %s not found for admin %s",
						models.ErrValidation, session.RepositoryIDs[i], session.AdminID)
				}
			}
		}

		if err := tx.Create(sessionRef, session); err != nil {
			return fmt.Errorf("failed to create session document: %w", err)
		}

		entry := &models.TokenIndexEntry{
			Token:     session.ID,
			AdminID:   session.AdminID,
			SessionID: session.ID,
			CreatedAt: session.CreatedAt,
		}
		if err := tx.Create(tokenRef, entry); err != nil {
			return fmt.Errorf("failed to create token index entry: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			return err
		}
		log.Error(ctx, "Failed to create onboarding session",
			"error", err,
			"admin_id", session.AdminID,
			"repository_count", len(session.RepositoryIDs),
			"operation", "create_session",
		)
		return fmt.Errorf("failed to create onboarding session for admin %s: %w", session.AdminID, err)
	}

	log.Info(ctx, "Onboarding session created",
		"admin_id", session.AdminID,
		"session_id", session.ID,
	)
	return nil
}

// ListSessions returns an admin's sessions ordered by creation time.
func (fs *FirestoreService) ListSessions(ctx context.Context, adminID string) ([]*models.OnboardingSession, error) {
	if !validDocID(adminID) {
		return []*models.OnboardingSession{}, nil
	}

	iter := fs.sessions(adminID).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	sessions := []*models.OnboardingSession{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error(ctx, "Failed to list onboarding sessions",
				"error", err,
				"admin_id", adminID,
				"operation", "list_sessions",
			)
			return nil, fmt.Errorf("failed to list sessions for admin %s: %w", adminID, err)
		}

		session, err := sessionFromSnapshot(doc)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// GetSession retrieves one session under an admin.
func (fs *FirestoreService) GetSession(ctx context.Context, adminID, sessionID string) (*models.OnboardingSession, error) {
	if !validDocID(adminID) || !validDocID(sessionID) {
		return nil, ErrSessionNotFound
	}

	doc, err := fs.sessions(adminID).Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSessionNotFound
		}
		log.Error(ctx, "Failed to get onboarding session",
			"error", err,
			"admin_id", adminID,
			"session_id", sessionID,
			"operation", "get_session",
		)
		return nil, fmt.Errorf("failed to get session %s for admin %s: %w", sessionID, adminID, err)
	}

	return sessionFromSnapshot(doc)
}

// FindSessionByToken resolves an invitation token across all admins. The token
// index answers in one read; sessions written before the index existed are
// found by scanning every admin and the missing index entry is written back.
func (fs *FirestoreService) FindSessionByToken(ctx context.Context, token string) (*models.OnboardingSession, error) {
	if !validDocID(token) {
		return nil, ErrSessionNotFound
	}

	doc, err := fs.client.Collection(collectionTokens).Doc(token).Get(ctx)
	switch {
	case err == nil:
		var entry models.TokenIndexEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal token index entry: %w", err)
		}
		return fs.GetSession(ctx, entry.AdminID, entry.SessionID)
	case status.Code(err) != codes.NotFound:
		log.Error(ctx, "Failed to read token index",
			"error", err,
			"operation", "get_token_index",
		)
		return nil, fmt.Errorf("failed to read token index: %w", err)
	}

	session, err := fs.scanForToken(ctx, token)
	if err != nil {
		return nil, err
	}

	log.Warn(ctx, "Session resolved without token index entry, backfilling",
		"admin_id", session.AdminID,
		"session_id", session.ID,
	)
	if err := fs.writeTokenIndex(ctx, session); err != nil {
		log.Warn(ctx, "Failed to backfill token index entry", "error", err, "session_id", session.ID)
	}
	return session, nil
}

// scanForToken looks for the token under every admin, one read per admin.
func (fs *FirestoreService) scanForToken(ctx context.Context, token string) (*models.OnboardingSession, error) {
	refs := fs.client.Collection(collectionAdmins).DocumentRefs(ctx)
	for {
		adminRef, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error(ctx, "Failed to list admins during token scan",
				"error", err,
				"operation", "scan_token",
			)
			return nil, fmt.Errorf("failed to list admins: %w", err)
		}

		session, err := fs.GetSession(ctx, adminRef.ID, token)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return nil, ErrSessionNotFound
}

func (fs *FirestoreService) writeTokenIndex(ctx context.Context, session *models.OnboardingSession) error {
	entry := &models.TokenIndexEntry{
		Token:     session.ID,
		AdminID:   session.AdminID,
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	}
	_, err := fs.client.Collection(collectionTokens).Doc(session.ID).Set(ctx, entry)
	return err
}

// UpdateSession reads a session, applies mutate and writes it back in one
// transaction. mutate may run more than once if the transaction is retried.
func (fs *FirestoreService) UpdateSession(
	ctx context.Context,
	adminID, sessionID string,
	mutate func(*models.OnboardingSession) error,
) (*models.OnboardingSession, error) {
	if !validDocID(adminID) || !validDocID(sessionID) {
		return nil, ErrSessionNotFound
	}

	ref := fs.sessions(adminID).Doc(sessionID)
	var updated *models.OnboardingSession

	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to read session: %w", err)
		}

		session, err := sessionFromSnapshot(doc)
		if err != nil {
			return err
		}
		if err := mutate(session); err != nil {
			return err
		}
		if err := tx.Set(ref, session); err != nil {
			return fmt.Errorf("failed to write session: %w", err)
		}

		updated = session
		return nil
	})

	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
			return nil, err
		}
		log.Error(ctx, "Failed to update onboarding session",
			"error", err,
			"admin_id", adminID,
			"session_id", sessionID,
			"operation", "update_session",
		)
		return nil, fmt.Errorf("failed to update session %s for admin %s: %w", sessionID, adminID, err)
	}

	return updated, nil
}

// DeleteSession removes a session and its token index entry.
func (fs *FirestoreService) DeleteSession(ctx context.Context, adminID, sessionID string) error {
	if !validDocID(adminID) || !validDocID(sessionID) {
		return ErrSessionNotFound
	}

	ref := fs.sessions(adminID).Doc(sessionID)
	tokenRef := fs.client.Collection(collectionTokens).Doc(sessionID)

	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to read session: %w", err)
		}
		if err := tx.Delete(ref); err != nil {
			return fmt.Errorf("failed to delete session document: %w", err)
		}
		if err := tx.Delete(tokenRef); err != nil {
			return fmt.Errorf("failed to delete token index entry: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return err
		}
		log.Error(ctx, "Failed to delete onboarding session",
			"error", err,
			"admin_id", adminID,
			"session_id", sessionID,
			"operation", "delete_session",
		)
		return fmt.Errorf("failed to delete session %s for admin %s: %w", sessionID, adminID, err)
	}

	log.Info(ctx, "Onboarding session deleted", "admin_id", adminID, "session_id", sessionID)
	return nil
}

// BackfillTokenIndex writes index entries for sessions that lack one and
// returns how many were written.
func (fs *FirestoreService) BackfillTokenIndex(ctx context.Context) (int, error) {
	written := 0
	err := fs.forEachAdmin(ctx, func(adminID string) error {
		sessions, err := fs.ListSessions(ctx, adminID)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			_, err := fs.client.Collection(collectionTokens).Doc(session.ID).Get(ctx)
			if err == nil {
				continue
			}
			if status.Code(err) != codes.NotFound {
				return fmt.Errorf("failed to read token index for %s: %w", session.ID, err)
			}
			if err := fs.writeTokenIndex(ctx, session); err != nil {
				return fmt.Errorf("failed to write token index for %s: %w", session.ID, err)
			}
			written++
		}
		return nil
	})
	return written, err
}

// PruneDanglingRepositoryRefs drops repository IDs that no longer exist from
// every session and returns how many sessions were (or, on a dry run, would be)
// changed.
func (fs *FirestoreService) PruneDanglingRepositoryRefs(ctx context.Context, dryRun bool) (int, error) {
	changed := 0
	err := fs.forEachAdmin(ctx, func(adminID string) error {
		repos, err := fs.ListRepositories(ctx, adminID)
		if err != nil {
			return err
		}
		existing := make(map[string]bool, len(repos))
		for _, repo := range repos {
			existing[repo.ID] = true
		}

		sessions, err := fs.ListSessions(ctx, adminID)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			kept := keepExisting(session.RepositoryIDs, existing)
			if len(kept) == len(session.RepositoryIDs) {
				continue
			}
			changed++
			log.Info(ctx, "Session references deleted repositories",
				"admin_id", adminID,
				"session_id", session.ID,
				"dangling", len(session.RepositoryIDs)-len(kept),
				"dry_run", dryRun,
			)
			if dryRun {
				continue
			}
			_, err := fs.sessions(adminID).Doc(session.ID).Update(ctx, []firestore.Update{
				{Path: "repository_ids", Value: kept},
			})
			if err != nil {
				return fmt.Errorf("failed to prune session %s: %w", session.ID, err)
			}
		}
		return nil
	})
	return changed, err
}

func keepExisting(ids []string, existing map[string]bool) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if existing[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

func (fs *FirestoreService) forEachAdmin(ctx context.Context, fn func(adminID string) error) error {
	refs := fs.client.Collection(collectionAdmins).DocumentRefs(ctx)
	for {
		adminRef, err := refs.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list admins: %w", err)
		}
		if err := fn(adminRef.ID); err != nil {
			return err
		}
	}
}

// Dump exports users, the token index and every admin's sub-collections as
// plain maps keyed by collection path.
func (fs *FirestoreService) Dump(ctx context.Context) (map[string][]map[string]interface{}, error) {
	dump := make(map[string][]map[string]interface{})

	for _, name := range []string{collectionUsers, collectionTokens} {
		docs, err := dumpCollection(ctx, fs.client.Collection(name))
		if err != nil {
			return nil, fmt.Errorf("failed to dump collection %s: %w", name, err)
		}
		dump[name] = docs
	}

	err := fs.forEachAdmin(ctx, func(adminID string) error {
		for _, coll := range []*firestore.CollectionRef{fs.repositories(adminID), fs.sessions(adminID)} {
			docs, err := dumpCollection(ctx, coll)
			if err != nil {
				return fmt.Errorf("failed to dump collection %s: %w", coll.Path, err)
			}
			dump[collectionAdmins+"/"+adminID+"/"+coll.ID] = docs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dump, nil
}

func dumpCollection(ctx context.Context, collection *firestore.CollectionRef) ([]map[string]interface{}, error) {
	iter := collection.Documents(ctx)
	defer iter.Stop()

	documents := []map[string]interface{}{}
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}

		data := doc.Data()
		data["_id"] = doc.Ref.ID
		documents = append(documents, data)
	}
	return documents, nil
}

func sessionFromSnapshot(doc *firestore.DocumentSnapshot) (*models.OnboardingSession, error) {
	var session models.OnboardingSession
	if err := doc.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", doc.Ref.ID, err)
	}
	if session.RepositoryIDs == nil {
		session.RepositoryIDs = []string{}
	}
	return &session, nil
}
