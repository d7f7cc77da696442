package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/getmockd/kongreg/pkg/cli/internal/output"
	"github.com/getmockd/kongreg/pkg/config"
	"github.com/spf13/cobra"
)

var (
	validateOutput     string
	validateGatewayURL string
	validateAdapter    string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without contacting the gateway",
	Long: `Load the configuration file and KONGREG_* environment variables, validate
them, and print the service definition that register would send.

The gateway is never contacted and the admin token is never printed.`,
	Example: `  # Validate ./kongreg.yaml
  kongreg validate

  # Print the resolved definition as YAML
  kongreg validate --config deploy/kongreg.yaml --output yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if validateGatewayURL != "" {
			cfg.SetGatewayURL(validateGatewayURL)
		}
		if validateAdapter != "" {
			cfg.SetAdapter(validateAdapter)
		}

		resolved, err := cfg.Resolve()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		format := validateOutput
		if jsonOutput {
			format = "json"
		}
		w := cmd.OutOrStdout()
		switch format {
		case "json":
			return output.JSON(w, resolved)
		case "yaml":
			return output.YAML(w, resolved)
		case "text", "":
			return printResolved(w, resolved)
		default:
			return fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
		}
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "text", "Output format: text, json, yaml")
	validateCmd.Flags().StringVar(&validateGatewayURL, "gateway-url", "", "Kong admin API URL (overrides config and $KONGREG_GATEWAY_URL)")
	validateCmd.Flags().StringVar(&validateAdapter, "adapter", "", "Admin API shape: kong-v0 or kong-v2")
	rootCmd.AddCommand(validateCmd)
}

func printResolved(w io.Writer, r *config.Resolved) error {
	if r.File != "" {
		fmt.Fprintf(w, "Configuration is valid (%s)\n\n", r.File)
	} else {
		fmt.Fprint(w, "Configuration is valid\n\n")
	}

	svc := r.Service
	tw := output.Table(w)
	fmt.Fprintf(tw, "Gateway:\t%s (%s)\n", r.Gateway.URL, r.Gateway.Adapter)
	fmt.Fprintf(tw, "Service:\t%s\n", svc.Name)
	fmt.Fprintf(tw, "Upstream:\t%s:%d\n", svc.Host, svc.Port)
	fmt.Fprintf(tw, "Paths:\t%s\n", strings.Join(svc.Paths, ", "))

	keys := make([]string, 0, len(svc.Properties))
	for k := range svc.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		label := ""
		if i == 0 {
			label = "Properties:"
		}
		fmt.Fprintf(tw, "%s\t%s=%v\n", label, k, svc.Properties[k])
	}

	if len(svc.Plugins) == 0 {
		fmt.Fprintf(tw, "Plugins:\t(none)\n")
	}
	for i, p := range svc.Plugins {
		label := ""
		if i == 0 {
			label = "Plugins:"
		}
		fmt.Fprintf(tw, "%s\t%s\n", label, p.Name)
	}
	return tw.Flush()
}
