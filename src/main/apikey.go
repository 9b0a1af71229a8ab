package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"screen-translate/src/config"
	"screen-translate/src/translate"
)

// newAPIKeyCmd writes the credential files the translation engines read on
// every request, so a running instance picks the new key up without reload.
func newAPIKeyCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-key",
		Short: "Store translation engine credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "deepl KEY",
		Short: "Write the DeepL API key file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			if err := translate.WriteDeepLKey(cfg.DeepLKeyPath, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DeepL API key saved to %s\n", cfg.DeepLKeyPath)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "libre URL [KEY]",
		Short: "Write the LibreTranslate endpoint file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			ep := translate.Endpoint{URL: args[0]}
			if len(args) == 2 {
				ep.Key = args[1]
			}
			if err := translate.WriteEndpointFile(cfg.LibreConfigPath, ep); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "LibreTranslate endpoint saved to %s\n", cfg.LibreConfigPath)
			if strings.TrimSpace(ep.Key) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no API key given; requests are sent without one")
			}
			return nil
		},
	})
	return cmd
}
