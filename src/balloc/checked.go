//go:build !unchecked

package balloc

// contractViolation is the checked-build handler: contract breakage
// (order overflow, double-free, freeing a non-head address) is a
// programming bug, so it is logged at fatal level and aborts the
// process, the Go expression of the original's BUG_ON.
func contractViolation(pool *Pool, msg string) {
	logger := &defaultLogger
	if pool != nil {
		logger = &pool.logger
	}
	logger.Fatal().Str("violation", msg).Msg("balloc: contract violation, aborting")
}
