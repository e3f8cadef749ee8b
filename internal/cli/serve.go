package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/kinstory/internal/api"
)

var serveTimeout time.Duration

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the biography API over HTTP",
	Long: `Serve exposes generation and citation checks over HTTP:
  POST /v1/biographies          generate (add ?format=markdown for Markdown)
  POST /v1/citations/validate   check stored text against live records
  POST /v1/citations/repair     rewrite stale citations
  GET  /healthz                 liveness
  GET  /metrics                 Prometheus metrics

Example:
  kinstory serve --addr :8080 --llm-provider openai`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().DurationVar(&serveTimeout, "request-timeout", 5*time.Minute, "timeout for one generation request")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	return api.NewServer(a.generator, serveTimeout, a.log).Run(ctx, a.cfg.Server.Addr)
}
