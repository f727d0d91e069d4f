package main

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/Sternrassler/catproxy/pkg/logging"
	"github.com/Sternrassler/catproxy/pkg/pagination"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	limit   string
	jsonOut bool
}

func newFetchCmd(root *rootFlags) *cobra.Command {
	f := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a batch of cat image URLs and print them",
		Example: `  # Print 15 URLs, one per line
  catproxy fetch --limit 15

  # JSON array of {"url": ...}
  catproxy fetch --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			logCfg := cfg.LoggingSetup()
			logCfg.Output = cmd.ErrOrStderr()
			logging.Setup(logCfg)

			client, err := catapi.New(cfg.CatAPI())
			if err != nil {
				return fmt.Errorf("create cat API client: %w", err)
			}
			fetcher := pagination.NewBatchFetcher(client, cfg.Pagination())

			images, err := fetcher.FetchLimit(cmd.Context(), f.limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.jsonOut {
				urls := make([]map[string]string, 0, len(images))
				for _, img := range images {
					urls = append(urls, map[string]string{"url": img.URL})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(urls)
			}
			for _, img := range images {
				fmt.Fprintln(out, img.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.limit, "limit", "n", "", "Number of images to fetch [required]")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print a JSON array instead of one URL per line")

	return cmd
}
