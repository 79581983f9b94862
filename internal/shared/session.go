package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager resolves sessions stored in Redis under session:<id>.
// The id travels in a cookie for browsers or as a bearer token for stockctl.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

// Session holds the caller identity for one request.
type Session struct {
	ID     string
	userID string
	orgID  string
}

type sessionPayload struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
	}
}

// Load resolves the session for a request. Missing or expired sessions yield ErrUnauthenticated.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	id := sm.sessionID(r)
	if id == "" {
		return nil, ErrUnauthenticated
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("shared: decode session: %w", err)
	}
	if stored.UserID == "" || stored.OrgID == "" {
		return nil, ErrUnauthenticated
	}
	return &Session{ID: id, userID: stored.UserID, orgID: stored.OrgID}, nil
}

// Create stores a new session for the user and tenant. Login lives outside this service;
// the helper exists for the auth bridge and tests.
func (sm *SessionManager) Create(ctx context.Context, userID, orgID string) (*Session, error) {
	if userID == "" || orgID == "" {
		return nil, errors.New("shared: session requires user and organization")
	}
	sess := &Session{ID: uuid.NewString(), userID: userID, orgID: orgID}
	data, err := json.Marshal(sessionPayload{UserID: userID, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

// User returns the current user ID.
func (s *Session) User() string {
	return s.userID
}

// Organization returns the tenant the session is bound to.
func (s *Session) Organization() string {
	return s.orgID
}

// Authorize checks that the session acts for the given user and tenant.
func (s *Session) Authorize(userID, orgID string) error {
	if s == nil {
		return ErrUnauthenticated
	}
	if s.userID != userID || s.orgID != orgID {
		return ErrTenantMismatch
	}
	return nil
}

func (sm *SessionManager) sessionID(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sm.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}
