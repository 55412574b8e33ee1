package redisrepo

import "github.com/redis/go-redis/v9"

// createScript inserts a URL hash if the alias is free.
// KEYS: alias key, retired alias set, url id sequence, live id set.
// ARGV: alias, long url, created_at nanos, blocked flag, url key prefix.
// Returns the new id, or 0 when the alias is taken.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
if ARGV[4] == '1' and redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
  return 0
end
local id = redis.call('INCR', KEYS[3])
redis.call('HSET', ARGV[5] .. id, 'alias', ARGV[1], 'long_url', ARGV[2], 'hit_count', 0, 'created_at', ARGV[3])
redis.call('SET', KEYS[1], id)
redis.call('SADD', KEYS[4], id)
return id
`)

// incrementScript bumps hit_count of an existing URL hash.
// KEYS: url key. Returns -1 when missing.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
`)

// deleteScript soft-deletes a URL hash once and releases its live alias.
// KEYS: url key, live id set, retired alias set.
// ARGV: deleted_at nanos, id, alias key prefix.
// Returns -1 when missing, 0 when already deleted, 1 otherwise.
var deleteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HEXISTS', KEYS[1], 'deleted_at') == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'deleted_at', ARGV[1])
local alias = redis.call('HGET', KEYS[1], 'alias')
local aliasKey = ARGV[3] .. alias
if redis.call('GET', aliasKey) == ARGV[2] then
  redis.call('DEL', aliasKey)
end
redis.call('SREM', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], alias)
return 1
`)

// hitScript increments hit_count and appends a usage atomically.
// KEYS: url key, usage list, agent tally hash.
// ARGV: encoded usage, agent field.
// Returns -1 when the URL is missing.
var hitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('HINCRBY', KEYS[3], ARGV[2], 1)
return 1
`)
