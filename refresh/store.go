package refresh

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when Redis cannot be reached.
var ErrStoreUnavailable = errors.New("refresh store unavailable")

// ErrRecordNotFound is returned when no record exists for the presented secret.
var ErrRecordNotFound = errors.New("refresh record not found")

// ErrRecordExpired is returned when the record's lifetime has elapsed.
var ErrRecordExpired = errors.New("refresh record expired")

// ErrRecordRotated is returned when the record was already consumed by a
// rotation. Observing it on a presented secret is the replay signal.
var ErrRecordRotated = errors.New("refresh record already rotated")

// ErrRecordRevoked is returned when the record was explicitly revoked.
var ErrRecordRevoked = errors.New("refresh record revoked")

// ErrRecordCorrupt is returned when a stored record blob fails to decode.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

const minDenylistTTL = time.Second

const (
	consumeStatusNotFound    int64 = 0
	consumeStatusExpired     int64 = 1
	consumeStatusTerminal    int64 = 2
	consumeStatusDone        int64 = 3
	consumeStatusInvalidBlob int64 = 4
)

// Fixed record offsets shared with encoder.go (Lua uses 1-based indexing):
// byte 2 is the state, bytes 15..22 the big-endian expiry, bytes 39..54 the
// successor id, byte 55 the principal length.
const luaHelpers = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local function principal_index_key(data, prefix)
  local plen = string.byte(data, 55)
  if not plen or plen == 0 or #data < 55 + plen then
    return nil
  end
  return prefix .. string.sub(data, 56, 55 + plen)
end
`

const consumeRecordScript = luaHelpers + `
local record_key = KEYS[1]
local index_prefix = ARGV[1]
local successor = ARGV[2]
local now_unix = tonumber(ARGV[3])

local data = redis.call("GET", record_key)
if not data then
  return {0}
end

if #data < 55 then
  return {4}
end

local index_key = principal_index_key(data, index_prefix)
if not index_key then
  return {4}
end

local expires_at = read_be64(data, 15)
if not expires_at then
  return {4}
end

if expires_at <= now_unix then
  redis.call("DEL", record_key)
  redis.call("SREM", index_key, record_key)
  return {1}
end

local state = string.byte(data, 2)
if state ~= 0 then
  return {2, state}
end

local ttl = redis.call("PTTL", record_key)
if ttl <= 0 then
  redis.call("DEL", record_key)
  redis.call("SREM", index_key, record_key)
  return {1}
end

local updated = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3, 38) .. successor .. string.sub(data, 55)
redis.call("SET", record_key, updated, "PX", ttl)
redis.call("SREM", index_key, record_key)

return {3, data}
`

var consumeRecordLua = redis.NewScript(consumeRecordScript)

const revokeRecordScript = luaHelpers + `
local record_key = KEYS[1]
local index_prefix = ARGV[1]
local now_unix = tonumber(ARGV[2])

local data = redis.call("GET", record_key)
if not data then
  return {0}
end

if #data < 55 then
  return {4}
end

local index_key = principal_index_key(data, index_prefix)
if not index_key then
  return {4}
end

local expires_at = read_be64(data, 15)
if not expires_at then
  return {4}
end

if expires_at <= now_unix then
  redis.call("DEL", record_key)
  redis.call("SREM", index_key, record_key)
  return {1}
end

local state = string.byte(data, 2)
if state ~= 0 then
  return {2, state}
end

local ttl = redis.call("PTTL", record_key)
if ttl <= 0 then
  redis.call("DEL", record_key)
  redis.call("SREM", index_key, record_key)
  return {1}
end

local updated = string.sub(data, 1, 1) .. string.char(2) .. string.sub(data, 3)
redis.call("SET", record_key, updated, "PX", ttl)
redis.call("SREM", index_key, record_key)

return {3}
`

var revokeRecordLua = redis.NewScript(revokeRecordScript)

// Store persists refresh-token records, the per-principal live index, and the
// access-token denylist in Redis. All mutating state transitions run inside
// Lua scripts so lookup and transition are one atomic step.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a refresh [Store] backed by the given Redis client.
// prefix sets the Redis key namespace for record keys.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "grt"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) recordKey(secretHash [32]byte) string {
	return s.prefix + ":" + base64.RawURLEncoding.EncodeToString(secretHash[:])
}

func (s *Store) indexPrefix() string {
	return "grp:"
}

func (s *Store) indexKey(principalID string) string {
	return s.indexPrefix() + principalID
}

func (s *Store) denyKey(jti string) string {
	return "gdl:" + jti
}

func (s *Store) replayKey(recordID string) string {
	return "grr:" + recordID
}

// Save persists a freshly issued [Record] keyed by the hash of its raw secret
// and adds it to the principal's live index. The Redis TTL matches the
// record's expiry, so storage is reclaimed without a sweeper.
//
//	Performance: 2 Redis commands in one transaction (SET + SADD).
func (s *Store) Save(ctx context.Context, rec *Record, secretHash [32]byte) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	ttl := time.Until(time.Unix(rec.ExpiresAt, 0))
	if ttl <= 0 {
		return errors.New("record already expired")
	}

	recordKey := s.recordKey(secretHash)
	indexKey := s.indexKey(rec.PrincipalID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey, data, ttl)
		pipe.SAdd(ctx, indexKey, recordKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Consume atomically transitions the record for secretHash from Issued to
// Rotated and records the successor id. Exactly one concurrent caller wins;
// the rest observe the terminal state. Returns the record as it was before
// the transition.
//
// The successor id is recorded before the caller persists the successor, so
// if the caller aborts after a successful consume (for example on a stale
// security-version snapshot) the pointer refers to a record that never
// exists. That is intentional: the consumed secret stays terminal either
// way, and later presentations report the rotated state.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
func (s *Store) Consume(ctx context.Context, secretHash [32]byte, successor [16]byte) (*Record, error) {
	result, err := consumeRecordLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(secretHash)},
		s.indexPrefix(),
		successor[:],
		time.Now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid consume script response", ErrStoreUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid consume script status", ErrStoreUnavailable)
	}

	switch code {
	case consumeStatusNotFound:
		return nil, ErrRecordNotFound
	case consumeStatusExpired:
		return nil, ErrRecordExpired
	case consumeStatusTerminal:
		return nil, terminalError(parts)
	case consumeStatusDone:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing consumed record payload", ErrStoreUnavailable)
		}
		blob, err := scriptBlob(parts[1])
		if err != nil {
			return nil, err
		}
		rec, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrRecordCorrupt, decErr)
		}
		return rec, nil
	case consumeStatusInvalidBlob:
		return nil, ErrRecordCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown consume script status", ErrStoreUnavailable)
	}
}

// Revoke transitions the record for secretHash from Issued to Revoked.
// Idempotent: revoking a missing, expired, or already-terminal record is a
// no-op success.
func (s *Store) Revoke(ctx context.Context, secretHash [32]byte) error {
	return s.revokeKey(ctx, s.recordKey(secretHash))
}

func (s *Store) revokeKey(ctx context.Context, recordKey string) error {
	result, err := revokeRecordLua.Run(
		ctx,
		s.redis,
		[]string{recordKey},
		s.indexPrefix(),
		time.Now().Unix(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return fmt.Errorf("%w: invalid revoke script response", ErrStoreUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return fmt.Errorf("%w: invalid revoke script status", ErrStoreUnavailable)
	}

	switch code {
	case consumeStatusNotFound, consumeStatusExpired, consumeStatusTerminal, consumeStatusDone:
		return nil
	case consumeStatusInvalidBlob:
		return ErrRecordCorrupt
	default:
		return fmt.Errorf("%w: unknown revoke script status", ErrStoreUnavailable)
	}
}

// RevokeAllForPrincipal revokes every live refresh record owned by the
// principal and returns how many were transitioned by this call.
//
// ATOMICITY NOTE: This operation is NOT fully atomic. It reads the principal's
// live index (SMembers), then revokes each member with the per-record CAS
// script. A record issued between the read and revoke phases will not be
// captured by this call. In practice the race is extremely narrow and only
// affects revoke-all semantics — the stray record is caught by the next
// RevokeAllForPrincipal or by a security-version bump, which stales its
// snapshot regardless. Callers requiring stronger guarantees follow up with a
// second invocation.
func (s *Store) RevokeAllForPrincipal(ctx context.Context, principalID string) (int, error) {
	indexKey := s.indexKey(principalID)

	recordKeys, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked := 0
	for _, recordKey := range recordKeys {
		if err := s.revokeKey(ctx, recordKey); err != nil {
			if errors.Is(err, ErrRecordCorrupt) {
				continue
			}
			return revoked, err
		}
		revoked++
	}

	if err := s.redis.Del(ctx, indexKey).Err(); err != nil {
		return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return revoked, nil
}

// DenylistAccessID records a revoked access-token id. ttl must not exceed the
// access token's maximum lifetime: after natural expiry the token is rejected
// by the expiry check anyway, so the entry is safe to drop.
func (s *Store) DenylistAccessID(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl < minDenylistTTL {
		ttl = minDenylistTTL
	}

	if err := s.redis.Set(ctx, s.denyKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsAccessIDDenylisted reports whether the access-token id was revoked.
//
//	Performance: 1 Redis EXISTS.
func (s *Store) IsAccessIDDenylisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.denyKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// TrackReplayAnomaly increments the replay anomaly counter for a record id.
func (s *Store) TrackReplayAnomaly(ctx context.Context, recordID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	key := s.replayKey(recordID)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// ActiveCount returns the number of live records tracked for a principal.
func (s *Store) ActiveCount(ctx context.Context, principalID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.indexKey(principalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(count), nil
}

// ListForPrincipal fetches the principal's live records without mutating any
// Redis state. Expired and vanished records are skipped.
func (s *Store) ListForPrincipal(ctx context.Context, principalID string) ([]*Record, error) {
	recordKeys, err := s.redis.SMembers(ctx, s.indexKey(principalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(recordKeys) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(recordKeys))
	for i, recordKey := range recordKeys {
		cmds[i] = pipe.Get(ctx, recordKey)
	}

	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]*Record, 0, len(recordKeys))
	nowUnix := time.Now().Unix()
	for _, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			return nil, errors.Join(ErrRecordCorrupt, decErr)
		}
		if rec.ExpiresAt <= nowUnix || rec.State.Terminal() {
			continue
		}

		records = append(records, rec)
	}

	return records, nil
}

// SweepIndex removes index members whose records expired and were reclaimed
// by Redis TTL. Housekeeping only: Consume and Revoke already treat dangling
// members as absent.
func (s *Store) SweepIndex(ctx context.Context, principalID string) (int, error) {
	indexKey := s.indexKey(principalID)

	recordKeys, err := s.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(recordKeys) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(recordKeys))
	for i, recordKey := range recordKeys {
		existsCmds[i] = pipe.Exists(ctx, recordKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var dangling []interface{}
	for i, cmd := range existsCmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}
		if n == 0 {
			dangling = append(dangling, recordKeys[i])
		}
	}

	if len(dangling) == 0 {
		return 0, nil
	}
	if err := s.redis.SRem(ctx, indexKey, dangling...).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return len(dangling), nil
}

// EstimateActiveRecords scans record keys and counts matches.
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) EstimateActiveRecords(ctx context.Context) (int, error) {
	pattern := s.prefix + ":*"
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func terminalError(parts []interface{}) error {
	if len(parts) >= 2 {
		if state, ok := parts[1].(int64); ok && State(state) == StateRevoked {
			return ErrRecordRevoked
		}
	}
	return ErrRecordRotated
}

func scriptBlob(v interface{}) ([]byte, error) {
	switch blob := v.(type) {
	case string:
		return []byte(blob), nil
	case []byte:
		return blob, nil
	default:
		return nil, fmt.Errorf("%w: invalid record payload", ErrStoreUnavailable)
	}
}
