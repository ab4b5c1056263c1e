// Package cache provides the two-tier content cache for generated cards.
//
// # Tiers
//
// The memory tier is a ristretto cache whose cost budget is charged with each
// entry's Meaning weight. The disk tier stores one file per artifact under
// Dir/data and indexes them in a SQLite database (Dir/index.db) that holds
// size, weight and access metadata. The disk tier is bounded in bytes; when
// a write overflows it, entries are evicted by weight (highest first) and
// then by last access (oldest first).
//
// # Keys
//
// Entries are addressed by the xxhash64 of Meaning.CacheKey(), a stable
// serialization of every parameter that affects the artifact:
//
//	type cardMeaning struct{ owner, repo, theme string }
//
//	func (m cardMeaning) CacheKey() string {
//	    return m.owner + ":" + m.repo + "/" + m.theme + ":v1"
//	}
//
// # Generation
//
// GetOrCreate coalesces concurrent misses for a key into a single generate
// call. The generation runs on a context detached from any one caller, so a
// caller that gives up does not abort the work the other waiters depend on.
// Failed generations are never cached.
//
// # Maintenance
//
// Maintain prunes entries older than Config.MaxAge and checkpoints the index.
// Scheduler runs it on a cron schedule.
package cache
