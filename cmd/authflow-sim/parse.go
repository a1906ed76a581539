package main

import (
	"fmt"
	"strings"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/deeplink"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <url>...",
		Short: "Classify redirect URLs with the configured scheme",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, raw := range args {
				fmt.Fprintln(out, describePayload(raw, cfg.Deeplink.ClientConfig()))
			}
			return nil
		},
	}
}

func describePayload(raw string, client deeplink.ClientConfig) string {
	p, ok := deeplink.Parse(raw, client)
	if !ok {
		return raw + ": unrecognized"
	}
	var parts []string
	if r := p.Route; r != nil {
		switch r.Kind {
		case deeplink.RouteEnterPassword:
			parts = append(parts, fmt.Sprintf("route=%s identifier=%s scopes=%s", r.Kind, r.Identifier, strings.Join(r.Scopes, ",")))
		case deeplink.RouteValidateAuthCode:
			parts = append(parts, fmt.Sprintf("route=%s code=%s persist=%t", r.Kind, r.Code, r.PersistUser))
		default:
			parts = append(parts, "route="+r.Kind.String())
		}
	}
	if l := p.Launch; l != nil {
		parts = append(parts, "launch="+l.Kind.String())
	}
	return raw + ": " + strings.Join(parts, " ")
}

func loadConfig(cmd *cobra.Command) (authflow.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return authflow.DefaultConfig(), nil
	}
	return authflow.LoadConfig(path)
}
