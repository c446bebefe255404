package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dobj/internal/codec"
	"github.com/roach88/dobj/internal/journal"
	"github.com/roach88/dobj/internal/schema"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Classes  string
	Oid      int // optional - specific object only
}

// ReplayObjectResult holds the replay result for a single object.
type ReplayObjectResult struct {
	Oid           int    `json:"oid"`
	Class         string `json:"class,omitempty"`
	FromSeq       int64  `json:"from_seq"`
	LastSeq       int64  `json:"last_seq"`
	Applied       int    `json:"applied"`
	Failures      int    `json:"failures"`
	Digest        string `json:"digest,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Objects      []ReplayObjectResult `json:"objects"`
	TotalObjects int                  `json:"total_objects"`
	AllVerified  bool                 `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild objects from a journal and verify determinism",
		Long: `Rebuild every journaled object from its registration snapshot and the
events dispatched to it, twice, and check that both rebuilds agree.

An object verifies when it has a snapshot of a known class, every event
decodes and applies, and the two rebuilds have the same digest.

Exit codes:
  0 - All objects verified
  1 - An object failed to rebuild or rebuilt differently
  2 - Command error (journal or classes not found, etc.)

Examples:
  dobjctl replay --db ./journal.db --classes ./classes.cue
  dobjctl replay --db ./journal.db --classes ./classes --oid 3
  DOBJ_JOURNAL=./journal.db DOBJ_CLASSES=./classes.cue dobjctl replay --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Database == "" {
				opts.Database = opts.Config.Journal
			}
			if opts.Classes == "" {
				opts.Classes = opts.Config.Classes
			}
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $DOBJ_JOURNAL)")
	cmd.Flags().StringVar(&opts.Classes, "classes", "", "CUE class file or directory (default $DOBJ_CLASSES)")
	cmd.Flags().IntVar(&opts.Oid, "oid", 0, "replay a single object only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "journal path is required (--db or DOBJ_JOURNAL)")
	}
	if opts.Classes == "" {
		return NewExitError(ExitCommandError, "classes path is required (--classes or DOBJ_CLASSES)")
	}

	registry, err := schema.LoadClasses(opts.Classes)
	if err != nil {
		_ = formatter.Error(ErrCodeClasses, "failed to load classes", describeCompileError(err))
		return WrapExitError(ExitCommandError, "failed to load classes", err)
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	oids := []int{opts.Oid}
	if opts.Oid == 0 {
		oids, err = st.Oids(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list objects", err)
		}
	}

	result := ReplayResult{
		Objects:      make([]ReplayObjectResult, 0, len(oids)),
		TotalObjects: len(oids),
		AllVerified:  true,
	}
	for _, oid := range oids {
		out := replayObject(ctx, st, registry, oid)
		formatter.VerboseLog("replayed %d: applied=%d failures=%d", oid, out.Applied, out.Failures)
		result.Objects = append(result.Objects, out)
		if !out.verified() {
			result.AllVerified = false
		}
	}

	if formatter.IsJSON() {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.AllVerified {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeReplay, Message: "replay verification failed"}
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllVerified {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

func (r ReplayObjectResult) verified() bool {
	return r.Error == "" && r.Failures == 0 && r.Deterministic
}

// replayObject rebuilds oid twice and compares the results.
func replayObject(ctx context.Context, st *journal.Store, registry *schema.Registry, oid int) ReplayObjectResult {
	out := ReplayObjectResult{Oid: oid}

	snap, err := st.Snapshot(ctx, oid)
	if err != nil {
		if errors.Is(err, journal.ErrNoSnapshot) {
			out.Error = "no snapshot: class unknown"
		} else {
			out.Error = err.Error()
		}
		return out
	}
	out.Class = snap.Class

	var digests [2]string
	for i := range digests {
		obj, err := registry.NewObject(snap.Class)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		res, err := st.Replay(ctx, oid, obj)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		if digests[i], err = codec.ObjectDigest(obj); err != nil {
			out.Error = err.Error()
			return out
		}
		out.FromSeq, out.LastSeq = res.FromSeq, res.LastSeq
		out.Applied, out.Failures = res.Applied, res.Failures
	}

	out.Digest = digests[0]
	out.Deterministic = digests[0] == digests[1]
	return out
}

func outputReplayText(f *OutputFormatter, result ReplayResult) {
	f.Textf("Replay Summary: %d object(s)", result.TotalObjects)
	f.Textf("")

	for _, o := range result.Objects {
		status := "✓"
		if !o.verified() {
			status = "✗"
		}
		f.Textf("%s Object: %d %s", status, o.Oid, o.Class)
		if o.Error != "" {
			f.Textf("  Error: %s", o.Error)
			continue
		}
		f.Textf("  Events: %d applied, %d failed (seq %d..%d)", o.Applied, o.Failures, o.FromSeq, o.LastSeq)
		if f.Verbose {
			f.Textf("  Digest: %s", o.Digest)
		}
		if !o.Deterministic {
			f.Textf("  Warning: Non-deterministic replay detected!")
		}
	}

	f.Textf("")
	if result.AllVerified {
		f.Textf("✓ All objects verified")
	} else {
		f.Textf("✗ Replay verification failed")
	}
}

// openJournal opens an existing journal. A missing path is an error rather
// than a new empty journal.
func openJournal(path string) (*journal.Store, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	st, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return st, nil
}
