// シードユーティリティのエントリポイント。
// 起動中のバックエンドにデモ用の事業者・部品・デジタルツインを投入する。
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/nao1215/ichub/internal/seed"
	"github.com/nao1215/ichub/pkg/httpclient"
	"github.com/nao1215/ichub/pkg/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL  string
		dataPath string
		apiKey   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Seed ICHub backend with sample data",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataset, err := seed.LoadDataset(dataPath)
			if err != nil {
				log.Errorf("データの読み込みに失敗: %v", err)
				return err
			}

			client := httpclient.New(strings.TrimRight(baseURL, "/"),
				httpclient.WithTimeout(timeout),
				httpclient.WithHeader(middleware.HeaderAPIKey, apiKey),
			)
			_, err = seed.NewSeeder(client, cmd.OutOrStdout()).Run(cmd.Context(), dataset)
			return err
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:9000", "Backend URL")
	cmd.Flags().StringVar(&dataPath, "data", "", "YAML dataset to seed (default: bundled demo data)")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("ICHUB_AUTH_API_KEY"), "API key sent as X-Api-Key")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP request timeout")
	return cmd
}
