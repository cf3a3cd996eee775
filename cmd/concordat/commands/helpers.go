package commands

import (
	"context"
	"fmt"

	"github.com/concordat-io/concordat/pkg/estate"
)

// openRegistry opens (and migrates) the estate registry database. The caller
// owns the returned registry and must close it.
func openRegistry(ctx context.Context) (*estate.SQLiteRegistry, error) {
	path := registryPath
	if path == "" {
		var err error
		path, err = estate.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate estate registry: %w", err)
		}
	}
	registry, err := estate.NewSQLiteRegistry(estate.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := registry.Init(ctx); err != nil {
		return nil, err
	}
	if err := registry.Migrate(ctx); err != nil {
		registry.Close()
		return nil, err
	}
	return registry, nil
}

// resolveEstate loads the named estate, or the active one when alias is
// empty.
func resolveEstate(ctx context.Context, alias string) (*estate.Record, error) {
	registry, err := openRegistry(ctx)
	if err != nil {
		return nil, err
	}
	defer registry.Close()

	if alias != "" {
		return registry.Get(ctx, alias)
	}
	return registry.Active(ctx)
}
