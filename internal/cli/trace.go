package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/dobj"
	"github.com/roach88/dobj/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Oid      int    // optional - filter to one object
	Kind     string // optional - filter to one event kind
	Batch    string // optional - filter to one compound dispatch
}

// TraceEntry is one journaled event in the timeline.
type TraceEntry struct {
	Seq   int64     `json:"seq"`
	Oid   int       `json:"oid"`
	Kind  dobj.Kind `json:"kind"`
	Batch string    `json:"batch,omitempty"`
	Event string    `json:"event"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int               `json:"total_events"`
	Objects     int               `json:"objects"`
	Batches     int               `json:"batches"`
	ByKind      map[dobj.Kind]int `json:"by_kind"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List the events in a journal",
		Long: `List journaled events in dispatch order.

Members of one transaction share a batch id. The output includes:
- Timeline: every matching event with its target oid and batch
- Stats: event, object and batch counts, and events per kind

Examples:
  dobjctl trace --db ./journal.db
  dobjctl trace --db ./journal.db --oid 3 --kind entry_added
  dobjctl trace --db ./journal.db --batch 0192f1c4-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Database == "" {
				opts.Database = opts.Config.Journal
			}
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $DOBJ_JOURNAL)")
	cmd.Flags().IntVar(&opts.Oid, "oid", 0, "filter to one object")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "filter to one transaction batch")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "journal path is required (--db or DOBJ_JOURNAL)")
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	entries, err := readEntries(ctx, st, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildTrace(entries, opts.Kind)

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

func readEntries(ctx context.Context, st *journal.Store, opts *TraceOptions) ([]journal.Entry, error) {
	switch {
	case opts.Batch != "":
		entries, err := st.Batch(ctx, opts.Batch)
		if err != nil {
			return nil, err
		}
		if opts.Oid == 0 {
			return entries, nil
		}
		return slices.DeleteFunc(entries, func(e journal.Entry) bool {
			return e.TargetOid != opts.Oid
		}), nil
	case opts.Oid != 0:
		return st.Events(ctx, opts.Oid)
	default:
		return st.All(ctx)
	}
}

// buildTrace describes the entries of the given kind, or all entries if kind
// is empty.
func buildTrace(entries []journal.Entry, kind string) TraceResult {
	result := TraceResult{
		Timeline: []TraceEntry{},
		Stats:    TraceStats{ByKind: make(map[dobj.Kind]int)},
	}
	objects := make(map[int]bool)
	batches := make(map[string]bool)

	for _, e := range entries {
		if kind != "" && string(e.Kind) != kind {
			continue
		}

		te := TraceEntry{Seq: e.Seq, Oid: e.TargetOid, Kind: e.Kind, Batch: e.Batch}
		if ev, err := codec.Decode(e.Payload, nil); err != nil {
			te.Event = fmt.Sprintf("<undecodable: %v>", err)
		} else {
			te.Event = ev.String()
		}
		result.Timeline = append(result.Timeline, te)

		result.Stats.TotalEvents++
		result.Stats.ByKind[e.Kind]++
		objects[e.TargetOid] = true
		if e.Batch != "" {
			batches[e.Batch] = true
		}
	}

	result.Stats.Objects = len(objects)
	result.Stats.Batches = len(batches)
	return result
}

func outputTraceText(f *OutputFormatter, result TraceResult) {
	if len(result.Timeline) == 0 {
		f.Textf("No events found.")
		return
	}

	f.Textf("Timeline:")
	for _, e := range result.Timeline {
		batch := ""
		if e.Batch != "" {
			batch = " [" + e.Batch + "]"
		}
		f.Textf("  %4d  oid=%d  %s%s", e.Seq, e.Oid, e.Event, batch)
	}

	f.Textf("")
	f.Textf("Stats: %d event(s), %d object(s), %d batch(es)", result.Stats.TotalEvents, result.Stats.Objects, result.Stats.Batches)
	for _, k := range slices.Sorted(maps.Keys(result.Stats.ByKind)) {
		f.Textf("  %s: %d", k, result.Stats.ByKind[k])
	}
}

// requireFile reports an error unless path names an existing regular file.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("journal not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("journal path is a directory: %s", path)
	}
	return nil
}
