package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/treeline-dev/treeline/internal/config"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a treeline.json in the current directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := filepath.Join(wd, config.ConfigFileName)
			if !force && config.Exists(wd) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.ConfigFileName)
			}

			cfg := config.New()
			if len(args) > 0 {
				cfg.Name = args[0]
			} else {
				cfg.Name = filepath.Base(wd)
			}
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			success("Created %s", config.ConfigFileName)
			info("Run 'treeline serve' to start the server")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}
