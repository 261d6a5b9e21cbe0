package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"querynerd/internal/logging"
	"querynerd/internal/report"
	"querynerd/internal/store"
)

var historyLimit int

// openRunStore opens the configured store. The returned func closes it and
// the log files.
func openRunStore() (*store.RunStore, func(), error) {
	ws, cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Store.Enabled {
		logging.CloseAll()
		return nil, nil, fmt.Errorf("run store is disabled (store.enabled: false)")
	}
	runs, err := openStore(ws, cfg)
	if err != nil {
		logging.CloseAll()
		return nil, nil, err
	}
	return runs, func() {
		_ = runs.Close()
		logging.CloseAudit()
		logging.CloseAll()
	}, nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	runs, closeStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	list, err := runs.List(ctx, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	fmt.Fprintln(out, report.History(list))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	runs, closeStore, err := openRunStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	run, err := runs.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printRun(cmd.OutOrStdout(), run)
}
