//go:build unchecked

package balloc

// contractViolation is the unchecked-build handler: the violation is
// logged but not acted on, leaving the corrupt state to propagate as
// undefined behaviour.
func contractViolation(pool *Pool, msg string) {
	logger := &defaultLogger
	if pool != nil {
		logger = &pool.logger
	}
	logger.Warn().Str("violation", msg).Msg("balloc: contract violation ignored (unchecked build)")
}
