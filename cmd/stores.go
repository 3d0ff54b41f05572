package main

import (
	"context"

	"github.com/tbonnin/mediatheque/internal/merge"
	"github.com/urfave/cli/v3"
)

// StoresList prints the stores the next merge run would visit.
func (r *Runner) StoresList(ctx context.Context, cmd *cli.Command) error {
	config := r.resolveConfig(cmd)

	stores, err := merge.LocateStores(config.Library.Path, config.Library.ActiveUser)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stores, false)
	}

	if len(stores) == 0 {
		return r.writePlain("no candidate stores in %s\n", config.Library.Path)
	}
	for _, path := range stores {
		if err := r.writePlain("%s\n", path); err != nil {
			return err
		}
	}
	return nil
}
