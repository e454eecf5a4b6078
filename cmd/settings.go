package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"server-splitter/pkg/settings"
	"server-splitter/pkg/store"
)

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the splitter settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the effective settings as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSettings(cmd, opts, func(p *settings.Provider) error {
					cfg, err := p.Get(cmd.Context())
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(cfg)
				})
			},
		},
		&cobra.Command{
			Use:     "set key=value...",
			Short:   "Store one or more settings",
			Example: "  server-splitter settings set reserved_memory=256 server_modification_action=restart",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				values, err := parseAssignments(args)
				if err != nil {
					return err
				}
				return withSettings(cmd, opts, func(p *settings.Provider) error {
					return p.Set(cmd.Context(), values)
				})
			},
		},
	)
	return cmd
}

func withSettings(cmd *cobra.Command, opts *rootOptions, fn func(*settings.Provider) error) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	s, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(settings.NewProvider(s, settings.CacheTTL))
}

func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		values[key] = value
	}
	return values, nil
}
