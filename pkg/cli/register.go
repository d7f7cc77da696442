package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getmockd/kongreg/internal/announce"
	"github.com/getmockd/kongreg/pkg/cli/internal/output"
	"github.com/getmockd/kongreg/pkg/config"
	"github.com/getmockd/kongreg/pkg/gatewayclient"
	"github.com/getmockd/kongreg/pkg/metrics"
	"github.com/getmockd/kongreg/pkg/registry"
	"github.com/spf13/cobra"
)

var (
	registerGatewayURL  string
	registerAdapter     string
	registerInterval    time.Duration
	registerMetricsAddr string
)

// metricsShutdownTimeout bounds the wait for in-flight scrapes on exit.
const metricsShutdownTimeout = 5 * time.Second

// RegisterOutput is the JSON result of a one-shot registration.
type RegisterOutput struct {
	Status   string   `json:"status"`
	Service  string   `json:"service"`
	Gateway  string   `json:"gateway"`
	Adapter  string   `json:"adapter"`
	Upstream string   `json:"upstream"`
	Paths    []string `json:"paths"`
	Plugins  []string `json:"plugins"`
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the configured service on the gateway",
	Long: `Create or update the configured service on the Kong admin API, sync its
first route and replace its plugins with the configured ones.

With --interval the registration is repeated on every tick until the process
receives SIGINT or SIGTERM. Failed attempts are logged and retried on the next
tick.`,
	Example: `  # Register once using ./kongreg.yaml
  kongreg register

  # Register against a Kong 2.x admin API
  kongreg register --gateway-url http://kong:8001 --adapter kong-v2

  # Re-announce every 30 seconds and expose Prometheus metrics
  kongreg register --interval 30s --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runRegister(ctx, cmd)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerGatewayURL, "gateway-url", "", "Kong admin API URL (overrides config and $KONGREG_GATEWAY_URL)")
	registerCmd.Flags().StringVar(&registerAdapter, "adapter", "", "Admin API shape: kong-v0 or kong-v2")
	registerCmd.Flags().DurationVar(&registerInterval, "interval", 0, "Re-register on this interval until interrupted (0 registers once)")
	registerCmd.Flags().StringVar(&registerMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while re-registering (e.g. :9090)")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(ctx context.Context, cmd *cobra.Command) error {
	log := commandLogger(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if registerGatewayURL != "" {
		cfg.SetGatewayURL(registerGatewayURL)
	}
	if registerAdapter != "" {
		cfg.SetAdapter(registerAdapter)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	svc, err := cfg.ServiceInfo()
	if err != nil {
		return err
	}
	shape, err := cfg.Shape()
	if err != nil {
		return err
	}

	rec := metrics.New(nil)
	clientOpts := append(cfg.ClientOptions(),
		gatewayclient.WithHeader("User-Agent", currentBuild().UserAgent()),
		gatewayclient.WithObserver(rec),
		gatewayclient.WithLogger(log),
	)
	client := gatewayclient.New(cfg.Gateway.URL, clientOpts...)
	registrar := registry.NewRegistrar(client, shape,
		registry.WithLogger(log),
		registry.WithObserver(rec),
	)

	if registerInterval <= 0 {
		if registerMetricsAddr != "" {
			output.Warn(cmd.ErrOrStderr(), "--metrics-addr is only used with --interval")
		}
		if err := registrar.Register(ctx, svc); err != nil {
			return err
		}
		return printRegistered(cmd.OutOrStdout(), cfg, shape, svc)
	}

	if registerMetricsAddr != "" {
		srv := metrics.NewServer(registerMetricsAddr, rec)
		errc := make(chan error, 1)
		if err := srv.Start(errc); err != nil {
			return err
		}
		log.Info("metrics server listening", "url", srv.URL())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown failed", "error", err)
			}
		}()

		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)
		go func() {
			select {
			case err := <-errc:
				cancel(fmt.Errorf("metrics server failed: %w", err))
			case <-ctx.Done():
			}
		}()
	}

	a := announce.New(registrar, svc,
		announce.WithInterval(registerInterval),
		announce.WithLogger(log),
	)
	log.Info("announcing service", "service", svc.Name(), "shape", shape.Name(), "interval", a.Interval())

	err = a.Run(ctx)
	st := a.Status()
	log.Info("stopped announcing", "service", svc.Name(), "attempts", st.Attempts, "failures", st.Failures)
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printRegistered(w io.Writer, cfg *config.Config, shape registry.Shape, svc *registry.ServiceInfo) error {
	plugins := make([]string, 0, len(svc.Plugins()))
	for _, p := range svc.Plugins() {
		plugins = append(plugins, p.Name)
	}

	if jsonOutput {
		return output.JSON(w, RegisterOutput{
			Status:   "registered",
			Service:  svc.Name(),
			Gateway:  cfg.Gateway.URL,
			Adapter:  shape.Name(),
			Upstream: svc.UpstreamURL(),
			Paths:    svc.Paths(),
			Plugins:  plugins,
		})
	}

	fmt.Fprintf(w, "Registered service %s on %s (%s)\n", svc.Name(), cfg.Gateway.URL, shape.Name())
	fmt.Fprintf(w, "  Upstream: %s\n", svc.UpstreamURL())
	fmt.Fprintf(w, "  Plugins:  %d\n", len(plugins))
	return nil
}
