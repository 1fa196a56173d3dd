package main

import (
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/abytech-hub/notification-core/internal/client/store"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new notifications and read changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rc, err := s.Login(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s, %d unread\n", rc, s.Store.UnreadCount())

			var mu sync.Mutex
			seen := map[string]bool{}
			for _, n := range s.Store.Notifications() {
				seen[n.NotificationID] = true
			}
			lastUnread := s.Store.UnreadCount()
			unsubscribe := s.Store.Subscribe(func(snap store.Snapshot) {
				mu.Lock()
				defer mu.Unlock()
				for _, n := range snap.Notifications {
					if !seen[n.NotificationID] {
						seen[n.NotificationID] = true
						fmt.Fprintf(out, "new  %s  %s: %s\n", n.NotificationID, n.Title, n.Message)
					}
				}
				if snap.UnreadCount != lastUnread {
					lastUnread = snap.UnreadCount
					fmt.Fprintf(out, "unread %d\n", lastUnread)
				}
			})
			defer unsubscribe()

			return s.Watch(ctx)
		},
	}
	cmd.Flags().DurationVar(&opts.reconcile, "reconcile", 0, "refetch interval (default 2m)")
	return cmd
}
