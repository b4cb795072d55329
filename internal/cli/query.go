package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/neko/internal/archive"
	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/duration"
	"github.com/roach88/neko/internal/present"
	"github.com/roach88/neko/internal/store"
)

// QueryOptions holds flags for the read-only store commands.
type QueryOptions struct {
	*RootOptions
	StoreOptions

	// now is replaced in tests.
	now func() time.Time
}

func newQueryOptions(rootOpts *RootOptions) *QueryOptions {
	return &QueryOptions{RootOptions: rootOpts, now: time.Now}
}

func (o *QueryOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return newListCommand(newQueryOptions(rootOpts))
}

func newListCommand(opts *QueryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored giveaways",
		Long: `List every giveaway that has not been concluded or cancelled,
latest deadline first. Reads the store directly.

Example:
  neko list
  neko list --db ./data/neko.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}
	addStoreFlags(cmd, &opts.StoreOptions)
	return cmd
}

func runList(cmd *cobra.Command, opts *QueryOptions) error {
	ctx := cmd.Context()
	db, err := openReadOnly(ctx, opts.StoreOptions)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListEvents(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list giveaways", err)
	}

	out := opts.formatter(cmd)
	if len(events) == 0 {
		return out.Success(events, present.NoEventsText)
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCHANNEL\tWINNERS\tENDS\tREMAINING")
	now := opts.now()
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			ev.ID, ev.Title, ev.Location.Channel, ev.WinnerCount,
			ev.EndTime.UTC().Format(time.RFC3339),
			duration.FormatRemaining(ev.EndTime.Sub(now)),
		)
	}
	tw.Flush()
	return out.Success(events, strings.TrimRight(b.String(), "\n"))
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	return newViewCommand(newQueryOptions(rootOpts))
}

func newViewCommand(opts *QueryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <giveaway-id>",
		Short: "Show one stored giveaway",
		Long: `Show one giveaway with its entrant count. Reads the store directly.

Example:
  neko view N001-2026`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, opts, args[0])
		},
	}
	addStoreFlags(cmd, &opts.StoreOptions)
	return cmd
}

func runView(cmd *cobra.Command, opts *QueryOptions, id string) error {
	ctx := cmd.Context()
	db, err := openReadOnly(ctx, opts.StoreOptions)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundExit(opts.formatter(cmd), id)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read giveaway", err)
	}
	n, err := db.CountEntries(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count entrants", err)
	}

	view := domain.EventView{Event: ev, Entrants: n}
	return opts.formatter(cmd).Success(view, formatView(view, opts.now()))
}

func formatView(v domain.EventView, now time.Time) string {
	lines := []string{
		"Giveaway ID: " + v.ID,
		"Title: " + v.Title,
		"Channel ID: " + v.Location.Channel,
		"End Time: " + v.EndTime.UTC().Format(time.RFC3339),
		"Time Remaining: " + duration.FormatRemaining(v.EndTime.Sub(now)),
		fmt.Sprintf("Winner Count: %d", v.WinnerCount),
		fmt.Sprintf("Entrants: %d", v.Entrants),
	}
	if v.Image != "" {
		lines = append(lines, "Image: "+v.Image)
	}
	return strings.Join(lines, "\n")
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return newArchiveCommand(newQueryOptions(rootOpts))
}

func newArchiveCommand(opts *QueryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [giveaway-id]",
		Short: "Show archive records of concluded giveaways",
		Long: `Without an id, list every archive record, most recent first.
With an id, print that giveaway's full record.

Example:
  neko archive
  neko archive N001-2026 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runArchiveShow(cmd, opts, args[0])
			}
			return runArchiveList(cmd, opts)
		},
	}
	addStoreFlags(cmd, &opts.StoreOptions)
	return cmd
}

func runArchiveList(cmd *cobra.Command, opts *QueryOptions) error {
	ctx := cmd.Context()
	db, err := openReadOnly(ctx, opts.StoreOptions)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListRecords(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list archive", err)
	}

	out := opts.formatter(cmd)
	if len(records) == 0 {
		return out.Success(records, "No archived giveaways.")
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tENTRANTS\tWINNERS\tCONCLUDED")
	for _, rec := range records {
		winners := strings.Join(rec.Winners, ", ")
		if winners == "" {
			winners = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			rec.EventID, rec.Title, len(rec.Entrants), winners,
			rec.ConcludedAt.UTC().Format(time.RFC3339),
		)
	}
	tw.Flush()
	return out.Success(records, strings.TrimRight(b.String(), "\n"))
}

func runArchiveShow(cmd *cobra.Command, opts *QueryOptions, id string) error {
	ctx := cmd.Context()
	db, err := openReadOnly(ctx, opts.StoreOptions)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.ReadRecord(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundExit(opts.formatter(cmd), id)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read archive record", err)
	}
	return opts.formatter(cmd).Success(rec, strings.TrimRight(archive.FormatRecord(rec), "\n"))
}

func notFoundExit(out *OutputFormatter, id string) error {
	if err := out.Error("NOT_FOUND", present.NotFoundText, map[string]string{"id": id}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("giveaway %s not found", id))
}
