package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/easyblocks"
	"github.com/mensylisir/xmbuild/runtime"
	"github.com/mensylisir/xmbuild/util"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list-easyblocks",
		Short:   "List the available easyblocks",
		Args:    cobra.NoArgs,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range easyblocks.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newParamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "avail-params EASYBLOCK",
		Short: "Show the easyconfig parameters an easyblock accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := easyblocks.Params(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tDEFAULT\tDESCRIPTION")
			for _, p := range params {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Category, defaultText(p), p.Description)
			}
			return w.Flush()
		},
	}
}

func defaultText(p config.Parameter) string {
	if p.Default == nil {
		return "-"
	}
	return util.TruncateString(fmt.Sprintf("%v", p.Default), 30, "...")
}

func newSettingsCommand(args *runtime.CliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "show-settings",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(args)
			if err != nil {
				return err
			}
			out, err := s.YAML()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
