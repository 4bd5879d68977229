package root

import (
	"context"

	"github.com/src-lua/apogee/internal/engine"
	"github.com/src-lua/apogee/internal/storage"
)

func openStore(ctx context.Context) (*storage.SQLiteStore, func(), error) {
	path, err := storage.ResolveDBPath(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = store.Close()
	}
	return store, cleanup, nil
}

func openSessions(ctx context.Context) (*engine.Sessions, func(), error) {
	store, cleanup, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.EngineOptions(logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine.NewSessions(store, opts), cleanup, nil
}

func openService(ctx context.Context) (*engine.Service, func(), error) {
	sessions, cleanup, err := openSessions(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sessions.For(cfg.User), cleanup, nil
}
