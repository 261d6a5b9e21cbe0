package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"querynerd/internal/pipeline"
)

var keepEmpty bool

func validatePlan(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	plan, err := pipeline.ParsePlan(data)
	if err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	repaired := pipeline.ValidateWith(plan, pipeline.ValidatorOptions{KeepEmptyFields: keepEmpty})

	out, err := json.MarshalIndent(repaired, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
