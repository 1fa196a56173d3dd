package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abytech-hub/notification-core/internal/domain"
	"github.com/spf13/cobra"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var page, limit int
	var search string
	var unreadOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications for the token's recipient",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			s.Store.UpdateSearch(search)
			s.Store.UpdatePagination(0, limit)
			s.Store.UpdatePagination(page, 0)
			if _, err := s.Login(cmd.Context()); err != nil {
				return err
			}
			ns := s.Store.Notifications()
			if unreadOnly {
				ns = s.Store.UnreadNotifications()
			}
			p := s.Store.Pagination()
			printNotifications(cmd.OutOrStdout(), ns)
			fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d total, %d unread\n",
				p.Page, p.TotalPages, p.TotalNotifications, s.Store.UnreadCount())
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultPageLimit, "page size")
	cmd.Flags().StringVar(&search, "search", "", "filter by title or message")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only show unread notifications")
	return cmd
}

func newUnreadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unread-count",
		Short: "Print the server-side unread count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			n, err := s.Notifications.UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newReadCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			if _, err := s.Login(cmd.Context()); err != nil {
				return err
			}
			for _, id := range args {
				if err := s.Store.MarkAsRead(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s marked as read\n", id)
			}
			return nil
		},
	}
}

func newReadAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session()
			if err != nil {
				return err
			}
			if _, err := s.Login(cmd.Context()); err != nil {
				return err
			}
			if err := s.Store.MarkAllAsRead(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")
			return nil
		},
	}
}

func newCreateCommand(opts *rootOptions) *cobra.Command {
	var to []string
	var title, message, link string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Send a notification to one or more recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients, err := parseRecipients(to, link)
			if err != nil {
				return err
			}
			s, err := opts.session()
			if err != nil {
				return err
			}
			if _, err := s.Login(cmd.Context()); err != nil {
				return err
			}
			n, err := s.Store.CreateNotification(cmd.Context(), domain.CreateNotificationRequest{
				Recipients: recipients,
				Title:      title,
				Message:    message,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s for %d recipient(s)\n", n.NotificationID, len(n.Recipients))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipients as TYPE:id, e.g. USER:42 (repeatable)")
	cmd.Flags().StringVar(&title, "title", "", "notification title")
	cmd.Flags().StringVar(&message, "message", "", "notification message")
	cmd.Flags().StringVar(&link, "link", "", "link opened from the notification")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// parseRecipients reads "TYPE:id" pairs.
func parseRecipients(values []string, link string) ([]domain.NotificationRecipient, error) {
	out := make([]domain.NotificationRecipient, 0, len(values))
	for _, v := range values {
		typ, id, ok := strings.Cut(v, ":")
		if !ok || id == "" {
			return nil, fmt.Errorf("recipient %q: want TYPE:id", v)
		}
		t, err := domain.ParseRecipientType(typ)
		if err != nil {
			return nil, err
		}
		nr := domain.NotificationRecipient{ID: id, Type: t}
		if link != "" {
			l := link
			nr.Link = &l
		}
		out = append(out, nr)
	}
	return out, nil
}

func printNotifications(w io.Writer, ns []domain.Notification) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tCREATED\tTITLE")
	for _, n := range ns {
		state := "read"
		if n.Read != nil && !*n.Read {
			state = "unread"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.NotificationID, state, n.CreatedAt.Local().Format(time.DateTime), n.Title)
	}
	_ = tw.Flush()
}
