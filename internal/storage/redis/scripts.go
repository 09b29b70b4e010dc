package redis

const (
	// upsertSessionScript atomically replaces a session hash and its index entry
	upsertSessionScript = `
local session_key = KEYS[1]     -- lounge:session:{sessionID}
local index_key = KEYS[2]       -- lounge:sessions

local session_id = ARGV[1]
local created_score = tonumber(ARGV[2])

-- Replace the hash so cleared optional fields do not linger
redis.call('DEL', session_key)
redis.call('HSET', session_key, unpack(ARGV, 3))

-- Index by creation time for range queries
redis.call('ZADD', index_key, created_score, session_id)

return 'OK'
`

	// deleteSessionScript removes a session and its index entry
	deleteSessionScript = `
local session_key = KEYS[1]
local index_key = KEYS[2]

local session_id = ARGV[1]

local removed = redis.call('DEL', session_key)
redis.call('ZREM', index_key, session_id)

return removed
`
)
