package commands

import (
	btclog "github.com/btcsuite/btclog/v2"
)

// log is the package-level logger for cmd/vactord/commands, wired up by
// setupLogging once the serve/evict-now commands have parsed flags.
var log btclog.Logger = btclog.Disabled
