package commands

import (
	"fmt"
	"os"

	btclog "github.com/btcsuite/btclog/v2"

	"github.com/roasbeef/vactor/internal/build"
	"github.com/roasbeef/vactor/internal/storage"
	"github.com/roasbeef/vactor/internal/vactor"
)

// expandHome expands a leading "~" in path to the user's home directory.
func expandHome(path string) string {
	expanded := os.ExpandEnv(path)
	if expanded == path && len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		expanded = home + path[1:]
	}
	return expanded
}

// setupLogging wires a console handler (plus a rotating file handler, if
// logDir is non-empty) into both internal/vactor's and internal/storage's
// package loggers via a HandlerSet fan-out.
func setupLogging(logDirPath string) (btclog.Logger, *build.RotatingLogWriter, error) {
	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stderr))

	var rotator *build.RotatingLogWriter
	if logDirPath != "" {
		rotator = build.NewRotatingLogWriter()
		err := rotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDirPath,
			MaxLogFiles:    build.DefaultMaxLogFiles,
			MaxLogFileSize: build.DefaultMaxLogFileSize,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init log rotator: %w", err)
		}

		handlers = append(handlers, btclog.NewDefaultHandler(rotator))
	}

	handlerSet := build.NewHandlerSet(handlers...)
	logger := btclog.NewSLogger(handlerSet)

	vactor.UseLogger(logger.WithPrefix("VACT"))
	storage.UseLogger(logger.WithPrefix("STOR"))
	log = logger.WithPrefix("CMDD")

	return logger, rotator, nil
}

// openStorage opens (and migrates) the sqlite actor-state database at path.
func openStorage(path string, logger btclog.Logger) (*storage.SqliteStore, error) {
	store, err := storage.NewSqliteStore(&storage.SqliteConfig{
		DatabaseFileName: expandHome(path),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return store, nil
}

// buildRuntime constructs a Runtime wired to a loopback Messenger/Locator
// (this daemon only ever talks to itself — there is no cluster transport
// or placement layer) plus the sqlite-backed StorageProvider, and
// registers the demo echo actor used by the evict-now subcommand to
// demonstrate activation/eviction without a real wire transport.
func buildRuntime(runtimeName string, store *storage.SqliteStore,
	extra ...vactor.RuntimeOption) (*vactor.Runtime, *loopback, error) {

	lb := newLoopback()

	opts := append([]vactor.RuntimeOption{
		vactor.WithName(runtimeName),
		vactor.WithMessenger(lb),
		vactor.WithLocator(lb),
		vactor.WithStorageProvider(storage.NewActorStorageProvider(store.Store)),
	}, extra...)

	rt := vactor.NewRuntime(opts...)
	lb.attach(rt)

	if err := rt.RegisterInterface(newEchoDescriptor()); err != nil {
		return nil, nil, fmt.Errorf("registering echo actor: %w", err)
	}

	return rt, lb, nil
}
