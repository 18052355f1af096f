package xredisq

import "github.com/redis/go-redis/v9"

// KEYS: ready, inflight, leases
// ARGV: now_ms, deadline_ms, max, receipt_1..receipt_max
// 返回 {receipt_1, envelope_1, receipt_2, envelope_2, ...}
var receiveScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', ARGV[1])
for _, r in ipairs(expired) do
	local env = redis.call('HGET', KEYS[2], r)
	if env then
		redis.call('RPUSH', KEYS[1], env)
	end
	redis.call('HDEL', KEYS[2], r)
	redis.call('ZREM', KEYS[3], r)
end

local out = {}
for i = 1, tonumber(ARGV[3]) do
	local env = redis.call('RPOP', KEYS[1])
	if not env then
		break
	end
	local r = ARGV[3 + i]
	redis.call('HSET', KEYS[2], r, env)
	redis.call('ZADD', KEYS[3], ARGV[2], r)
	out[#out + 1] = r
	out[#out + 1] = env
end
return out
`)

// KEYS: inflight, leases
// ARGV: receipt
// 返回删除的租约数（0 或 1）
var deleteScript = redis.NewScript(`
local removed = redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[1], ARGV[1])
return removed
`)
