package cli

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblock"
	"github.com/mensylisir/xmbuild/easyblocks"
	"github.com/mensylisir/xmbuild/logger"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/step"
)

func newInstallCommand(args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install EASYCONFIG...",
		Short: "Install software from one or more easyconfig files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			return install(cmd, args, paths)
		},
	}
	addInstallFlags(cmd, args)
	cmd.Flags().StringSliceVar(&args.SkipSteps, "skip", nil, "Steps to skip, e.g. test,sanity-check")
	cmd.Flags().StringSliceVar(&args.OnlySteps, "only", nil, "Run only these steps")
	cmd.Flags().StringVar(&args.Stop, "stop", "", "Stop after this step")
	cmd.Flags().BoolVar(&args.SanityCheckOnly, "sanity-check-only", false, "Only re-run the sanity check against the installed module")
	cmd.Flags().BoolVar(&args.ModuleOnly, "module-only", false, "Only (re)generate the module file")
	cmd.Flags().BoolVar(&args.DryRun, "dry-run", false, "Print the commands instead of running them")
	return cmd
}

func newSanityCheckCommand(args *runtime.CliArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanity-check EASYCONFIG...",
		Short: "Check installed software against its module, without rebuilding",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			args.SanityCheckOnly = true
			return install(cmd, args, paths)
		},
	}
	addInstallFlags(cmd, args)
	return cmd
}

func addInstallFlags(cmd *cobra.Command, args *runtime.CliArgs) {
	cmd.Flags().StringVar(&args.Easyblock, "easyblock", "", "Easyblock to use instead of the one derived from the software name")
	cmd.Flags().IntVarP(&args.Parallel, "parallel", "j", 0, "Build parallelism")
	cmd.Flags().StringArrayVar(&args.Set, "set", nil, "Override an easyconfig parameter, key=value")
}

// loadEasyconfig reads path and applies the command line overrides before the parameters are checked.
func loadEasyconfig(args *runtime.CliArgs, path string) (easyblock.EasyBlock, *config.EasyConfig, error) {
	recipe, err := config.NewLoader(path).Load()
	if err != nil {
		return nil, nil, err
	}
	if args.Easyblock != "" {
		recipe[config.ParamEasyblock] = args.Easyblock
	}
	for _, kv := range args.Set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, nil, errors.Errorf("--set expects key=value, got %q", kv)
		}
		parsed, err := config.ParseRecipe([]byte(strings.TrimSpace(k)+": "+v), "--set "+kv)
		if err != nil {
			return nil, nil, err
		}
		for pk, pv := range parsed {
			recipe[pk] = pv
		}
	}
	return easyblocks.FromRecipe(recipe, path)
}

func stepOptions(args *runtime.CliArgs) (easyblock.Options, error) {
	var opts easyblock.Options
	var err error
	if opts.Skip, err = step.ParseList(args.SkipSteps); err != nil {
		return opts, err
	}
	if opts.Only, err = step.ParseList(args.OnlySteps); err != nil {
		return opts, err
	}
	if args.Stop != "" {
		if opts.StopAt, err = step.ParseName(args.Stop); err != nil {
			return opts, err
		}
	}
	opts.DryRun = args.DryRun
	return opts, nil
}

func install(cmd *cobra.Command, args *runtime.CliArgs, paths []string) error {
	settings, err := loadSettings(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := setupLogger(args, settings, out); err != nil {
		return err
	}
	opts, err := stepOptions(args)
	if err != nil {
		return err
	}
	opts.Log = logger.Log
	opts.Out = out

	for _, path := range paths {
		block, cfg, err := loadEasyconfig(args, path)
		if err != nil {
			return err
		}
		d, err := easyblock.NewDriver(block, cfg, settings, opts)
		if err != nil {
			return err
		}
		switch {
		case args.SanityCheckOnly:
			res, err := d.SanityCheckOnly(cmd.Context())
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return errors.Wrapf(err, "%s/%s", cfg.Name(), cfg.ModuleVersion())
			}
			fmt.Fprintf(out, "== sanity check for %s/%s passed\n", cfg.Name(), cfg.ModuleVersion())
		case args.ModuleOnly:
			modPath, err := d.ModuleOnly()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "== module written to %s\n", modPath)
		default:
			report, err := d.Run(cmd.Context())
			if report != nil {
				fmt.Fprint(out, report.Summary())
			}
			if err != nil {
				return errors.Wrapf(err, "installing %s/%s", cfg.Name(), cfg.ModuleVersion())
			}
			fmt.Fprintf(out, "== %s/%s installed in %s\n", cfg.Name(), cfg.ModuleVersion(), d.Context().InstallDir())
		}
	}
	return nil
}
