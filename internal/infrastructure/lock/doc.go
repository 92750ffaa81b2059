// Package lock provides KeyGuard implementations that serialize mutations per stock key.
//
//   - LocalKeyGuard: in-process weighted semaphores, one per key, removed when idle
//   - RedisKeyGuard: SET NX leases with token-checked release, for multi-instance deployments
//   - DatabaseKeyGuard: no application-level guard; SELECT ... FOR UPDATE row locks serialize writers
package lock
