package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/weiliu/h5client/internal/history"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/pager"
	"github.com/weiliu/h5client/internal/session"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently watched videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := c.services(ctx)
			if err != nil {
				return err
			}
			if !deps.Session.IsLoggedIn() {
				return requireLogin(session.ErrNotLoggedIn)
			}

			loader := pager.New(deps.History.Fetcher(), history.DefaultPageSize)
			for i := 0; i < pages; i++ {
				if !loader.RequestNext(ctx) {
					break
				}
			}
			result := listing[models.HistoryEntry]{
				Items:      loader.Items(),
				PageNumber: loader.PageNumber(),
				TotalPages: loader.TotalPages(),
				State:      loader.State().String(),
			}
			c.out().print(result, func(w io.Writer) {
				if len(result.Items) == 0 {
					fmt.Fprintln(w, "no history yet")
					return
				}
				writeHistory(w, result.Items)
			})
			// Pages loaded before a failure stay on screen.
			return loader.Err()
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")

	return cmd
}

func (c *cli) newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List membership plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			plans, err := deps.Membership.List(cmd.Context())
			if err != nil {
				return err
			}
			c.out().print(plans, func(w io.Writer) { writePlans(w, plans) })
			return nil
		},
	}
}
