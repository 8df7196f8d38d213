package repository

import "github.com/redis/go-redis/v9"

// Every script below runs one atomic unit of the Redis backend. Hold keys are
// derived inside the scripts from the key prefix, so the backend targets a
// single Redis primary rather than a cluster.

var createSKUScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'name', ARGV[2], 'stock', ARGV[3], 'reserved', 0, 'active', ARGV[4], 'created', ARGV[5], 'updated', ARGV[5])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

var setActiveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'active', ARGV[1], 'updated', ARGV[2])
return 1
`)

var restockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
redis.call('HSET', KEYS[1], 'updated', ARGV[2])
return redis.call('HINCRBY', KEYS[1], 'stock', ARGV[1])
`)

// adjustScript returns {code, available}: 1 ok, -1 missing sku, -3 guard failed.
var adjustScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1, 0}
end
local stock = tonumber(redis.call('HGET', KEYS[1], 'stock'))
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved'))
local delta = tonumber(ARGV[2])
if ARGV[1] == 'incr_reserved' then
  if reserved + delta > stock then
    return {-3, stock - reserved}
  end
  reserved = reserved + delta
elseif ARGV[1] == 'decr_reserved' then
  reserved = math.max(reserved - delta, 0)
else
  if stock - delta < reserved then
    return {-3, stock - reserved}
  end
  stock = stock - delta
end
redis.call('HSET', KEYS[1], 'stock', stock, 'reserved', reserved)
return {1, stock - reserved}
`)

// reserveScript returns {code, available}: 1 ok, -1 missing, -2 inactive, -3 short.
var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1, 0}
end
if redis.call('HGET', KEYS[1], 'active') ~= '1' then
  return {-2, 0}
end
local stock = tonumber(redis.call('HGET', KEYS[1], 'stock'))
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved'))
local qty = tonumber(ARGV[3])
local available = stock - reserved
if available < qty then
  return {-3, available}
end
redis.call('HINCRBY', KEYS[1], 'reserved', qty)
redis.call('HSET', KEYS[2], 'sku', ARGV[2], 'qty', ARGV[3], 'holder', ARGV[4], 'session', ARGV[5], 'status', 'ACTIVE', 'expires', ARGV[6], 'created', ARGV[7], 'updated', ARGV[7])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('SADD', KEYS[4], ARGV[1])
redis.call('ZADD', KEYS[5], ARGV[6], ARGV[1])
return {1, available - qty}
`)

// removeScript deletes a hold and returns its fields, or an empty array when
// the hold is gone. ARGV[3] == '1' also takes the units out of stock.
var removeScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
if #fields == 0 then
  return {}
end
local h = redis.call('HMGET', KEYS[1], 'sku', 'qty', 'holder')
local prefix = ARGV[1]
local skuKey = prefix .. 'sku:' .. h[1]
local qty = tonumber(h[2])
if redis.call('EXISTS', skuKey) == 1 then
  local reserved = tonumber(redis.call('HGET', skuKey, 'reserved'))
  redis.call('HSET', skuKey, 'reserved', math.max(reserved - qty, 0))
  if ARGV[3] == '1' then
    local stock = tonumber(redis.call('HGET', skuKey, 'stock'))
    redis.call('HSET', skuKey, 'stock', math.max(stock - qty, 0), 'updated', ARGV[4])
  end
end
redis.call('DEL', KEYS[1])
redis.call('SREM', prefix .. 'sku_holds:' .. h[1], ARGV[2])
redis.call('SREM', prefix .. 'holder:' .. h[3], ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[2])
return fields
`)

// transferScript returns {-1} for a missing sku, {0, covered} when the live
// holds do not cover the quantity, or {1, id...} with the ids now owned by the
// target.
var transferScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1}
end
local prefix = ARGV[1]
local now = tonumber(ARGV[7])
local want = tonumber(ARGV[6])
local candidates = {}
local total = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[2])) do
  local h = redis.call('HMGET', prefix .. 'hold:' .. id, 'holder', 'session', 'expires', 'qty', 'created')
  if h[1] == ARGV[3] and tonumber(h[3]) >= now and (ARGV[5] == '' or h[2] == ARGV[5]) then
    table.insert(candidates, {id = id, session = h[2], expires = h[3], qty = tonumber(h[4]), created = h[5]})
    total = total + tonumber(h[4])
  end
end
if total < want then
  return {0, total}
end
table.sort(candidates, function(a, b)
  local ca, cb = tonumber(a.created), tonumber(b.created)
  if ca == cb then
    return a.id < b.id
  end
  return ca < cb
end)
local fromSet = prefix .. 'holder:' .. ARGV[3]
local toSet = prefix .. 'holder:' .. ARGV[4]
local moved = {1}
local remaining = want
for _, c in ipairs(candidates) do
  if remaining == 0 then
    break
  end
  local key = prefix .. 'hold:' .. c.id
  if c.qty <= remaining then
    redis.call('HSET', key, 'holder', ARGV[4], 'updated', ARGV[7])
    redis.call('SREM', fromSet, c.id)
    redis.call('SADD', toSet, c.id)
    table.insert(moved, c.id)
    remaining = remaining - c.qty
  else
    redis.call('DEL', key)
    redis.call('SREM', KEYS[2], c.id)
    redis.call('SREM', fromSet, c.id)
    redis.call('ZREM', KEYS[3], c.id)
    local parts = {{ARGV[8], ARGV[4], remaining, toSet}, {ARGV[9], ARGV[3], c.qty - remaining, fromSet}}
    for _, p in ipairs(parts) do
      redis.call('HSET', prefix .. 'hold:' .. p[1], 'sku', ARGV[2], 'qty', p[3], 'holder', p[2], 'session', c.session, 'status', 'ACTIVE', 'expires', c.expires, 'created', c.created, 'updated', ARGV[7])
      redis.call('SADD', KEYS[2], p[1])
      redis.call('SADD', p[4], p[1])
      redis.call('ZADD', KEYS[3], c.expires, p[1])
    end
    table.insert(moved, ARGV[8])
    remaining = 0
  end
end
return moved
`)

// reconcileScript returns {-1} for a missing sku, otherwise
// {stored, actual, id, qty, holder, ...} listing every evicted hold.
var reconcileScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1}
end
local prefix = ARGV[1]
local now = tonumber(ARGV[2])
local live = 0
local out = {0, 0}
for _, id in ipairs(redis.call('SMEMBERS', KEYS[2])) do
  local key = prefix .. 'hold:' .. id
  local h = redis.call('HMGET', key, 'qty', 'expires', 'holder')
  if not h[1] then
    redis.call('SREM', KEYS[2], id)
    redis.call('ZREM', KEYS[3], id)
  elseif tonumber(h[2]) < now then
    redis.call('DEL', key)
    redis.call('SREM', KEYS[2], id)
    redis.call('SREM', prefix .. 'holder:' .. h[3], id)
    redis.call('ZREM', KEYS[3], id)
    table.insert(out, id)
    table.insert(out, h[1])
    table.insert(out, h[3])
  else
    live = live + tonumber(h[1])
  end
end
local stored = tonumber(redis.call('HGET', KEYS[1], 'reserved'))
local stock = tonumber(redis.call('HGET', KEYS[1], 'stock'))
local actual = math.min(live, stock)
if actual ~= stored then
  redis.call('HSET', KEYS[1], 'reserved', actual)
end
out[1] = stored
out[2] = actual
return out
`)
