package main

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"github.com/abytech-hub/notification-core/internal/client/store"
	"github.com/spf13/cobra"
)

// newSearchCommand reads search terms line by line, the way a search box
// receives keystrokes. Lines arriving within the debounce delay collapse into
// one query for the last of them.
func newSearchCommand(opts *rootOptions) *cobra.Command {
	var delay = store.DebounceDelay
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run debounced searches for each term read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := s.Login(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var mu sync.Mutex
			var lastErr error
			d := store.NewSearchDebouncer(delay, func(term string) {
				mu.Lock()
				defer mu.Unlock()
				s.Store.UpdateSearch(term)
				if err := s.Store.FetchNotifications(ctx); err != nil {
					lastErr = err
					fmt.Fprintf(out, "search %q failed: %v\n", term, err)
					return
				}
				p := s.Store.Pagination()
				fmt.Fprintf(out, "search %q: %d match(es)\n", term, p.TotalNotifications)
				printNotifications(out, s.Store.Notifications())
			})
			defer d.Stop()

			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				d.Input(strings.TrimSpace(sc.Text()))
			}
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read terms: %w", err)
			}
			d.Flush()

			mu.Lock()
			defer mu.Unlock()
			return lastErr
		},
	}
	cmd.Flags().DurationVar(&delay, "debounce", store.DebounceDelay, "quiet period before a term is searched")
	return cmd
}
