package stores

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Account is the persisted identity record.
type Account struct {
	ID              string `redis:"id"`
	Identifier      string `redis:"identifier"`
	IdentifierType  int    `redis:"identifier_type"`
	PasswordHash    string `redis:"password_hash"`
	DisplayName     string `redis:"display_name"`
	BirthDate       string `redis:"birth_date"`
	ProfileComplete bool   `redis:"profile_complete"`
	TermsVersion    int64  `redis:"terms_version"`
	CreatedAt       int64  `redis:"created_at"`
}

func (a *Account) fields() map[string]any {
	return map[string]any{
		"id":               a.ID,
		"identifier":       a.Identifier,
		"identifier_type":  a.IdentifierType,
		"password_hash":    a.PasswordHash,
		"display_name":     a.DisplayName,
		"birth_date":       a.BirthDate,
		"profile_complete": a.ProfileComplete,
		"terms_version":    a.TermsVersion,
		"created_at":       a.CreatedAt,
	}
}

type AccountStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewAccountStore(redisClient redis.UniversalClient, prefix string) *AccountStore {
	return &AccountStore{redis: redisClient, prefix: normalizePrefix(prefix, "afa")}
}

func (s *AccountStore) key(identifier string) string { return s.prefix + ":id:" + identifier }

func (s *AccountStore) indexKey(userID string) string { return s.prefix + ":uid:" + userID }

// Exists reports whether identifier is taken.
func (s *AccountStore) Exists(ctx context.Context, identifier string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(identifier)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// Create stores acct unless its identifier is already registered.
func (s *AccountStore) Create(ctx context.Context, acct *Account) error {
	const maxRetries = 4
	key := s.key(acct.Identifier)
	if acct.CreatedAt == 0 {
		acct.CreatedAt = time.Now().Unix()
	}

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n == 1 {
				return ErrExists
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, acct.fields())
				pipe.Set(ctx, s.indexKey(acct.ID), acct.Identifier, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err == nil, errors.Is(err, ErrExists):
			return err
		default:
			return unavailable(err)
		}
	}
	return ErrExists
}

// Get loads the account registered under identifier.
func (s *AccountStore) Get(ctx context.Context, identifier string) (*Account, error) {
	res := s.redis.HGetAll(ctx, s.key(identifier))
	fields, err := res.Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	var acct Account
	if err := res.Scan(&acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// GetByID resolves the id index, then loads the account.
func (s *AccountStore) GetByID(ctx context.Context, userID string) (*Account, error) {
	identifier, err := s.redis.Get(ctx, s.indexKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return s.Get(ctx, identifier)
}

// UpdateProfile marks the profile complete with the given fields.
func (s *AccountStore) UpdateProfile(ctx context.Context, identifier, displayName, birthDate string) error {
	return s.update(ctx, identifier, map[string]any{
		"display_name":     displayName,
		"birth_date":       birthDate,
		"profile_complete": true,
	})
}

func (s *AccountStore) SetPasswordHash(ctx context.Context, identifier, hash string) error {
	return s.update(ctx, identifier, map[string]any{"password_hash": hash})
}

func (s *AccountStore) SetTermsVersion(ctx context.Context, identifier string, version int64) error {
	return s.update(ctx, identifier, map[string]any{"terms_version": version})
}

// update only touches existing accounts.
func (s *AccountStore) update(ctx context.Context, identifier string, fields map[string]any) error {
	key := s.key(identifier)
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return unavailable(err)
	}
	return err
}
