package storage

import (
	btclog "github.com/btcsuite/btclog/v2"
)

// log is the package-level logger. Callers wire in a real logger via
// UseLogger; until then all output is discarded.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-level logger used by the storage package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
