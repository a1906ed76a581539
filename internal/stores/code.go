package stores

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeRecordVersionV1 = 1

// consumeCodeLua reads, checks and deletes a code record atomically.
// KEYS[1] = code key
// ARGV[1] = current unix timestamp
//
// Layout: version(1) variant(1) identifierType(1) expiresAt(8 big-endian) ...
var consumeCodeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end
redis.call('DEL', KEYS[1])

if string.byte(data, 1) ~= 1 then
  return {err='not_found'}
end

local expiresAt = 0
for i = 4, 11 do
  expiresAt = expiresAt * 256 + string.byte(data, i)
end
if tonumber(ARGV[1]) > expiresAt then
  return {err='expired'}
end
return data
`)

// CodeRecord binds an issued code to the identifier it was sent to.
type CodeRecord struct {
	Identifier     string
	IdentifierType int
	Variant        int
	ExpiresAt      int64
}

type CodeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewCodeStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *CodeStore {
	if now == nil {
		now = time.Now
	}
	return &CodeStore{redis: redisClient, prefix: normalizePrefix(prefix, "afc"), now: now}
}

func (s *CodeStore) key(code string) string {
	sum := sha256.Sum256([]byte(code))
	return s.prefix + ":code:" + hex.EncodeToString(sum[:])
}

func (s *CodeStore) pendingKey(identifier string) string { return s.prefix + ":pending:" + identifier }

// Issue stores code for record.Identifier and revokes the code previously
// issued to the same identifier.
func (s *CodeStore) Issue(ctx context.Context, code string, record *CodeRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("code ttl must be positive")
	}
	record.ExpiresAt = s.now().Add(ttl).Unix()
	encoded, err := encodeCodeRecord(record)
	if err != nil {
		return err
	}

	key := s.key(code)
	pending := s.pendingKey(record.Identifier)
	previous, err := s.redis.Get(ctx, pending).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" && previous != key {
			pipe.Del(ctx, previous)
		}
		pipe.Set(ctx, key, encoded, ttl)
		pipe.Set(ctx, pending, key, ttl)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Consume returns the record for code and deletes it. Unknown, consumed
// and revoked codes report ErrNotFound.
func (s *CodeStore) Consume(ctx context.Context, code string) (*CodeRecord, error) {
	result, err := consumeCodeLua.Run(ctx, s.redis, []string{s.key(code)}, s.now().Unix()).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrNotFound
		case "expired":
			return nil, ErrExpired
		default:
			return nil, unavailable(err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrRedisUnavailable)
	}
	record, err := decodeCodeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	_ = s.redis.Del(ctx, s.pendingKey(record.Identifier)).Err()
	return record, nil
}

func encodeCodeRecord(record *CodeRecord) ([]byte, error) {
	if len(record.Identifier) > 65535 {
		return nil, errors.New("code record identifier too long")
	}
	var buf bytes.Buffer
	buf.WriteByte(codeRecordVersionV1)
	buf.WriteByte(byte(record.Variant))
	buf.WriteByte(byte(record.IdentifierType))
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Identifier))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Identifier)
	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*CodeRecord, error) {
	reader := bytes.NewReader(data)
	header := make([]byte, 3)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}
	if header[0] != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}
	record := &CodeRecord{Variant: int(header[1]), IdentifierType: int(header[2])}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	identifier := make([]byte, n)
	if _, err := io.ReadFull(reader, identifier); err != nil {
		return nil, err
	}
	record.Identifier = string(identifier)
	return record, nil
}
