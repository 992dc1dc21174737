package logsbloom

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
)

// RedisFilter is a log bloom filter stored in a Redis string.
// The string holds the same 256 bytes as Filter.Bytes, so a filter can be
// moved between memory and Redis as is. Bit operations use the Redis bitmap
// commands, see https://redis.io/docs/data-types/bitmaps/
// Adds and lookups run as Lua scripts which check the stored length first,
// so a deleted or truncated key is reported instead of being recreated as a
// short string, and an element is either fully added or not at all.
// A RedisFilter is safe for concurrent use.
type RedisFilter struct {
	client redis.UniversalClient
	key    string
}

// Both scripts return {STRLEN key, result}. Nothing is touched unless the
// stored string is ARGV[1] bytes long. The remaining ARGV are bit offsets.
var (
	setBitsScript = redis.NewScript(`
local len = redis.call('STRLEN', KEYS[1])
if len ~= tonumber(ARGV[1]) then
	return {len, 0}
end
for i = 2, #ARGV do
	redis.call('SETBIT', KEYS[1], ARGV[i], 1)
end
return {len, 1}
`)

	testBitsScript = redis.NewScript(`
local len = redis.call('STRLEN', KEYS[1])
if len ~= tonumber(ARGV[1]) then
	return {len, 0}
end
for i = 2, #ARGV do
	if redis.call('GETBIT', KEYS[1], ARGV[i]) == 0 then
		return {len, 0}
	end
end
return {len, 1}
`)
)

// redisOffset converts a bloom location into a Redis bit offset. Redis counts
// bits from the most significant bit of the first byte, the bloom from the
// least significant bit of the last one.
func redisOffset(loc uint) int64 {
	return int64(BitLength - 1 - loc)
}

// NewRedisFilter stores an empty filter at _key_, replacing whatever was
// there. A random key is generated if _key_ is blank.
func NewRedisFilter(ctx context.Context, client redis.UniversalClient, key string) (*RedisFilter, error) {
	return SaveRedisFilter(ctx, client, key, New())
}

// SaveRedisFilter stores the bits of _f_ at _key_, replacing whatever was
// there. A random key is generated if _key_ is blank.
func SaveRedisFilter(ctx context.Context, client redis.UniversalClient, key string, f *Filter) (*RedisFilter, error) {
	if key == "" {
		key = "logsbloom:" + GenerateRandomString(16)
	}
	if err := client.Set(ctx, key, f.bits[:], 0).Err(); err != nil {
		return nil, fmt.Errorf("logsbloom: error while saving filter to redis. error: %w", err)
	}
	log.Debug("Saved bloom filter to redis", "key", key, "bits", f.BitCount())
	return &RedisFilter{client: client, key: key}, nil
}

// OpenRedisFilter returns the filter already stored at _key_
func OpenRedisFilter(ctx context.Context, client redis.UniversalClient, key string) (*RedisFilter, error) {
	length, err := client.StrLen(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("logsbloom: error while reading filter %s from redis. error: %w", key, err)
	}
	if err := checkStoredLength(key, length); err != nil {
		return nil, err
	}
	return &RedisFilter{client: client, key: key}, nil
}

// checkStoredLength maps the length of the string at _key_ onto
// ErrFilterNotFound (nothing stored) or InvalidLengthError.
func checkStoredLength(key string, length int64) error {
	if length == 0 {
		return fmt.Errorf("%w: %s", ErrFilterNotFound, key)
	}
	if length != ByteLength {
		return &InvalidLengthError{Length: int(length)}
	}
	return nil
}

// Key returns the Redis key the filter is stored at
func (r *RedisFilter) Key() string {
	return r.key
}

// runBitsScript runs _script_ over the offsets of _locs_ and returns its
// result once the stored length has been verified.
func (r *RedisFilter) runBitsScript(ctx context.Context, script *redis.Script, locs []uint) (bool, error) {
	args := make([]interface{}, 0, len(locs)+1)
	args = append(args, ByteLength)
	for _, loc := range locs {
		args = append(args, redisOffset(loc))
	}
	res, err := script.Run(ctx, r.client, []string{r.key}, args...).Int64Slice()
	if err != nil {
		return false, err
	}
	if len(res) != 2 {
		return false, fmt.Errorf("logsbloom: unexpected script reply %v", res)
	}
	if err := checkStoredLength(r.key, res[0]); err != nil {
		return false, err
	}
	return res[1] == 1, nil
}

// Add sets the bits for _element_. It fails with ErrFilterNotFound or
// InvalidLengthError, leaving Redis untouched, if the key no longer holds a
// filter.
func (r *RedisFilter) Add(ctx context.Context, element []byte) error {
	locs := bloomPositions(element, AddMask)
	if _, err := r.runBitsScript(ctx, setBitsScript, locs[:]); err != nil {
		return fmt.Errorf("logsbloom: error while adding to filter %s. error: %w", r.key, err)
	}
	log.Trace("Added element to redis bloom filter", "key", r.key, "locs", locs)
	return nil
}

// Check returns false if _element_ is definitely not in the filter and true
// if it may be.
func (r *RedisFilter) Check(ctx context.Context, element []byte) (bool, error) {
	return r.multiCheck(ctx, [][]byte{element}, AddMask)
}

// CheckLegacy is Filter.CheckLegacy for a Redis stored filter
func (r *RedisFilter) CheckLegacy(ctx context.Context, element []byte) (bool, error) {
	return r.multiCheck(ctx, [][]byte{element}, LegacyCheckMask)
}

// MultiCheck returns true if every one of _topics_ may be in the filter.
// All bits are tested by a single script call. An empty list of topics
// matches any stored filter.
func (r *RedisFilter) MultiCheck(ctx context.Context, topics [][]byte) (bool, error) {
	return r.multiCheck(ctx, topics, AddMask)
}

// MultiCheckLegacy is MultiCheck done with CheckLegacy
func (r *RedisFilter) MultiCheckLegacy(ctx context.Context, topics [][]byte) (bool, error) {
	return r.multiCheck(ctx, topics, LegacyCheckMask)
}

func (r *RedisFilter) multiCheck(ctx context.Context, topics [][]byte, mask uint16) (bool, error) {
	locs := make([]uint, 0, len(topics)*HashRounds)
	for _, topic := range topics {
		positions := bloomPositions(topic, mask)
		locs = append(locs, positions[:]...)
	}
	ok, err := r.runBitsScript(ctx, testBitsScript, locs)
	if err != nil {
		return false, fmt.Errorf("logsbloom: error while checking filter %s. error: %w", r.key, err)
	}
	return ok, nil
}

// Union merges _other_ into the filter with BITOP OR. A nil _other_ is a no-op.
func (r *RedisFilter) Union(ctx context.Context, other *RedisFilter) error {
	if other == nil {
		return nil
	}
	if err := r.client.BitOpOr(ctx, r.key, r.key, other.key).Err(); err != nil {
		return fmt.Errorf("logsbloom: error while merging %s into %s. error: %w", other.key, r.key, err)
	}
	log.Debug("Merged redis bloom filters", "key", r.key, "other", other.key)
	return nil
}

// UnionFilter merges the in-memory filter _f_ into the filter. A nil _f_ is
// a no-op.
func (r *RedisFilter) UnionFilter(ctx context.Context, f *Filter) error {
	if f == nil {
		return nil
	}
	tmp := r.key + ":union:" + GenerateRandomString(8)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tmp, f.bits[:], 0)
		pipe.BitOpOr(ctx, r.key, r.key, tmp)
		pipe.Del(ctx, tmp)
		return nil
	})
	if err != nil {
		return fmt.Errorf("logsbloom: error while merging filter into %s. error: %w", r.key, err)
	}
	return nil
}

// Filter loads the stored bits into an in-memory Filter
func (r *RedisFilter) Filter(ctx context.Context) (*Filter, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, r.key)
		}
		return nil, fmt.Errorf("logsbloom: error while reading filter %s from redis. error: %w", r.key, err)
	}
	return FromBytes(data)
}

// BitCount returns the total number of set bits in the filter
func (r *RedisFilter) BitCount(ctx context.Context) (uint, error) {
	val, err := r.client.BitCount(ctx, r.key, &redis.BitCount{Start: 0, End: -1}).Result()
	if err != nil {
		return 0, fmt.Errorf("logsbloom: error while counting bits of filter %s. error: %w", r.key, err)
	}
	return uint(val), nil
}

// Delete removes the filter from Redis
func (r *RedisFilter) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("logsbloom: error while deleting filter %s. error: %w", r.key, err)
	}
	return nil
}
