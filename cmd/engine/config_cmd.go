package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/config"
)

func newConfigCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap the config file",
	}
	cmd.AddCommand(newConfigValidateCmd(gf), newConfigInitCmd(gf), newConfigPathCmd(gf))
	return cmd
}

func newConfigValidateCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and list errors and warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(gf.config, os.Getenv)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			config.ApplyEnv(&cfg, os.Getenv)
			_, v := config.NormalizeAndValidate(cfg)

			out := cmd.OutOrStdout()
			if gf.json {
				if err := printJSON(out, v); err != nil {
					return err
				}
			} else {
				for _, e := range v.Errors {
					fmt.Fprintf(out, "error: %s\n", e)
				}
				for _, w := range v.Warnings {
					fmt.Fprintf(out, "warning: %s\n", w)
				}
				if v.OK() {
					fmt.Fprintf(out, "%s: ok\n", path)
				}
			}
			if !v.OK() {
				return fmt.Errorf("%s: %d error(s):\n- %s", path, len(v.Errors), strings.Join(v.Errors, "\n- "))
			}
			return nil
		},
	}
}

func newConfigInitCmd(gf *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(gf.config, os.Getenv)
			out := cmd.OutOrStdout()
			if force {
				if err := config.SaveAtomic(path, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", path)
				return nil
			}
			created, err := config.EnsureUserConfig(path)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(out, "wrote %s\n", path)
			} else {
				fmt.Fprintf(out, "%s already exists (use --force to reset it)\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file, keeping a .bak copy")
	return cmd
}

func newConfigPathCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file, database and lock paths in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(gf.config, os.Getenv)
			cfg, err := config.Load(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			config.ApplyEnv(&cfg, os.Getenv)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", path)
			fmt.Fprintf(out, "data:   %s\n", cfg.DataDir())
			fmt.Fprintf(out, "db:     %s\n", cfg.DBPath())
			fmt.Fprintf(out, "lock:   %s\n", cfg.LockPath())
			return nil
		},
	}
}
