package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"EWI/internal/app/installer"
	"EWI/internal/argument"
	"EWI/internal/product"
	"EWI/internal/task"
)

func bindGlobalFlags(flags *pflag.FlagSet, opts *installer.Options) {
	flags.StringVarP(&opts.Product, "product", "p", "elasticsearch",
		"Product to operate on ("+strings.Join(installer.Products(), ", ")+")")
	flags.StringVar(&opts.Version, "version", "", "Product version, defaults to the version in the settings")
	flags.StringVar(&opts.SettingsPath, "config", "", "Installer settings file overlaying the built-in defaults")
	flags.StringVar(&opts.LogFile, "log-file", "", "Rotating installer log file")
	flags.StringVar(&opts.StagingRoot, "staging-root", "", "Directory holding preserved state during upgrades")
	flags.StringVar(&opts.RegistryPath, "registry", "", "Installation registry database")
	flags.BoolVar(&opts.Verbose, "debug", false, "Enable debug logging")
}

func newRootCommand() *cobra.Command {
	opts := &installer.Options{}

	root := &cobra.Command{
		Use:           "installer",
		Short:         "Install, upgrade and remove Elasticsearch and Kibana on Windows",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	bindGlobalFlags(root.PersistentFlags(), opts)

	root.AddCommand(
		operationCmd(opts, product.Install, "Install or upgrade the product"),
		operationCmd(opts, product.Uninstall, "Remove the product"),
		operationCmd(opts, product.Rollback, "Undo a failed install"),
		argsCmd(opts),
		pluginsCmd(opts),
	)
	return root
}

// withApp opens an installer session for the duration of fn.
func withApp(ctx context.Context, opts *installer.Options, fn func(*installer.App) error) error {
	a, err := installer.New(ctx, *opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func parseArguments(tokens []string) (map[string]string, error) {
	args, rest := argument.ParseCommandLine(tokens)
	if len(rest) > 0 {
		return nil, errors.Errorf("expected NAME=value arguments, got %s", strings.Join(rest, " "))
	}
	return args, nil
}

func operationCmd(opts *installer.Options, op product.Operation, short string) *cobra.Command {
	var silent bool

	cmd := &cobra.Command{
		Use:   op.String() + " [NAME=value...]",
		Short: short,
		RunE: func(cmd *cobra.Command, tokens []string) error {
			args, err := parseArguments(tokens)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *installer.App) error {
				outcome, err := a.Run(cmd.Context(), installer.RunRequest{
					Operation:   op,
					Arguments:   args,
					Interactive: !silent && op == product.Install,
				})
				if err != nil {
					return err
				}
				if outcome != task.Succeeded {
					return errors.Errorf("%s %s", op, outcome)
				}
				return nil
			})
		},
	}
	if op == product.Install {
		cmd.Flags().BoolVarP(&silent, "silent", "s", false, "Skip the wizard and install with the given arguments")
	}
	return cmd
}

func argsCmd(opts *installer.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "args [NAME=value...]",
		Short: "Show the arguments an install with the given values would record",
		RunE: func(cmd *cobra.Command, tokens []string) error {
			args, err := parseArguments(tokens)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(a *installer.App) error {
				inst, err := a.Load(cmd.Context(), product.Install, args)
				if err != nil {
					return err
				}
				out := inst.Arguments()
				a.Printer().PrintArguments(inst.Catalog().Names(), out)
				a.Printer().PrintSeparator("-", 40)
				cmd.Println(inst.Catalog().PropertyString(out))

				wf := inst.Workflow()
				a.Printer().PrintFailures(wf.AllFailures(), wf.IsPrerequisite)
				return nil
			})
		},
	}
}

func pluginsCmd(opts *installer.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect installed plugins",
	}
	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the plugins of the installed product",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *installer.App) error {
				live, recorded, err := a.InstalledPlugins(cmd.Context())
				if err != nil {
					return err
				}
				a.Printer().PrintList("Installed plugins", live)
				a.Printer().PrintList("Selected by the installer", recorded)
				return nil
			})
		},
	})
	return cmd
}
