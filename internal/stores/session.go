package stores

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is a signed-in session of one account.
type Session struct {
	ID         string `redis:"id"`
	UserID     string `redis:"uid"`
	Scopes     string `redis:"scopes"`
	Persistent bool   `redis:"persistent"`
	CreatedAt  int64  `redis:"created_at"`
}

// ScopeList splits the stored scope string.
func (s *Session) ScopeList() []string {
	if s.Scopes == "" {
		return nil
	}
	return strings.Fields(s.Scopes)
}

// JoinScopes is the inverse of ScopeList.
func JoinScopes(scopes []string) string { return strings.Join(scopes, " ") }

type SessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewSessionStore(redisClient redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{redis: redisClient, prefix: normalizePrefix(prefix, "afs")}
}

func (s *SessionStore) key(sessionID string) string { return s.prefix + ":sess:" + sessionID }

func (s *SessionStore) currentKey() string { return s.prefix + ":current" }

// Save stores sess with ttl and, when current is set, marks it as the
// signed-in session.
func (s *SessionStore) Save(ctx context.Context, sess *Session, ttl time.Duration, current bool) error {
	if sess.CreatedAt == 0 {
		sess.CreatedAt = time.Now().Unix()
	}
	key := s.key(sess.ID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"id":         sess.ID,
			"uid":        sess.UserID,
			"scopes":     sess.Scopes,
			"persistent": sess.Persistent,
			"created_at": sess.CreatedAt,
		})
		pipe.Expire(ctx, key, ttl)
		if current {
			pipe.Set(ctx, s.currentKey(), sess.ID, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	res := s.redis.HGetAll(ctx, s.key(sessionID))
	fields, err := res.Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	var sess Session
	if err := res.Scan(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Current returns the session marked current, or ErrNotFound.
func (s *SessionStore) Current(ctx context.Context) (*Session, error) {
	sid, err := s.redis.Get(ctx, s.currentKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return s.Get(ctx, sid)
}

// Delete removes the session and clears the current marker if it pointed
// at it. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.currentKey()}, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	return nil
}

var deleteSessionLua = redis.NewScript(`
redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[2]) == ARGV[1] then
  redis.call('DEL', KEYS[2])
end
return 1
`)
