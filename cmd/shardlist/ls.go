package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/shardlist/internal/client"
)

func newLsCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ls [marker]",
		Short: "List a bucket on a running server",
		Long: `Walks the configured bucket on a shardlist server page by page and prints
every key, and with --delimiter every common prefix marked PRE. --max-keys
sets the page size.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.Request{
				MaxKeys:   a.cfg.MaxKeys,
				ReadAhead: a.cfg.ReadAhead,
			}
			if len(args) == 1 {
				req.Marker = args[0]
			}
			if a.cfg.Delimiter {
				req.Delimiter = "/"
			}

			c := client.New(addr, nil)
			n := 0
			err := c.Walk(cmd.Context(), a.cfg.Bucket, req, func(item string, isPrefix bool) error {
				n++
				if isPrefix {
					_, err := fmt.Fprintf(a.out, "PRE %s\n", item)
					return err
				}
				_, err := fmt.Fprintln(a.out, item)
				return err
			})
			if err != nil {
				return err
			}
			a.logger.Sugar().Infof("listed %d entries", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "server base URL")
	return cmd
}
