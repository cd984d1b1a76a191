package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/awareness/internal/journal"
	"github.com/roach88/awareness/internal/world"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database   string
	Limit      int
	Subscriber string
}

// JournalResult is the JSON payload of the journal command.
type JournalResult struct {
	Cycles        []world.CycleSummary `json:"cycles,omitempty"`
	Subscriber    string               `json:"subscriber,omitempty"`
	Notifications []world.Notification `json:"notifications,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded cycles and notifications",
		Long: `Read the cycle journal written by "awareness run".

Without --subscriber, lists the most recent cycles. With --subscriber,
lists the most recent notifications delivered to that subscriber.

Examples:
  awareness journal --db ./awareness.db
  awareness journal --db ./awareness.db --subscriber gen-okafor --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum rows to show")
	cmd.Flags().StringVar(&opts.Subscriber, "subscriber", "", "show notifications for this subscriber")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "limit must be positive")
	}
	// Opening creates a database; an inspection command should not.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	var out JournalResult
	if opts.Subscriber != "" {
		out.Subscriber = opts.Subscriber
		out.Notifications, err = j.Notifications(ctx, opts.Subscriber, opts.Limit)
	} else {
		out.Cycles, err = j.RecentCycles(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	return opts.formatter(cmd).Emit(out, func(w io.Writer) {
		if opts.Subscriber != "" {
			writeNotificationsText(w, out.Subscriber, out.Notifications)
			return
		}
		writeCyclesText(w, out.Cycles)
	})
}

func writeCyclesText(w io.Writer, cycles []world.CycleSummary) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No cycles recorded.")
		return
	}
	for _, c := range cycles {
		fmt.Fprintf(w, "%s  cycle %d (%s) v%d: %d change(s), %d notification(s), %d dropped\n",
			c.CompletedAt.UTC().Format("2006-01-02T15:04:05Z"), c.Cycle, c.Trigger, c.Version,
			c.ChangeCount, c.NotificationCount, c.DroppedCount)
	}
}

func writeNotificationsText(w io.Writer, subscriber string, notes []world.Notification) {
	if len(notes) == 0 {
		fmt.Fprintf(w, "No notifications for %s.\n", subscriber)
		return
	}
	for _, n := range notes {
		writeNotificationText(w, n)
	}
}

func writeNotificationText(w io.Writer, n world.Notification) {
	flag := ""
	if n.RequiresResponse {
		flag = " [response required]"
	}
	fmt.Fprintf(w, "cycle %d  %s  %s/%s  %s%s\n", n.Cycle, n.SubscriberID, n.Priority, n.Tier, n.Title, flag)
	fmt.Fprintf(w, "    %s\n", n.Content)
}
