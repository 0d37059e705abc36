package cache

const (
	// KeySuffix marks a key as holding a user's full, unpaginated result set.
	KeySuffix = "_all"

	// RedisKeyPrefix namespaces entries in a shared Redis database.
	RedisKeyPrefix = "gamepasses:"
)

// Key returns the cache key for a user's full result set. It depends on the
// user alone: every offset/limit window is cut from the same entry. userID is
// used verbatim, so callers pass the same form they aggregate with.
//
// Example:
//
//	Key("123") == "123_all"
func Key(userID string) string {
	return userID + KeySuffix
}

// redisKey namespaces key for storage in Redis.
func redisKey(key string) string {
	return RedisKeyPrefix + key
}
