package balloc

import (
	"os"

	"github.com/rs/zerolog"
)

// defaultLogger is used by any pool that isn't given one via WithLogger.
var defaultLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
