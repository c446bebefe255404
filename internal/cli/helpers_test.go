package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dobj/internal/journal"
	"github.com/roach88/dobj/internal/omgr"
	"github.com/roach88/dobj/internal/schema"
	"github.com/roach88/dobj/internal/testutil"
)

const roomClasses = `package classes

class: Room: {
	fields: {
		name:      string
		score:     int
		seats:     [...int]
		occupants: "set"
		players:   "oidlist"
	}
	sizes: seats: 2
}
`

// writeFile writes content to dir/name, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// journalFixture is a journal written by an authoritative manager.
type journalFixture struct {
	DB      string
	Classes string
	Hall    int
	Lobby   int
}

// buildJournal registers two rooms, mutates them through a manager backed by
// a journal on disk and closes the journal.
func buildJournal(t *testing.T) journalFixture {
	t.Helper()
	dir := t.TempDir()
	fx := journalFixture{
		DB:      filepath.Join(dir, "journal.db"),
		Classes: writeFile(t, dir, "classes.cue", roomClasses),
	}

	registry, err := schema.LoadClasses(fx.Classes)
	require.NoError(t, err)
	st, err := journal.Open(fx.DB)
	require.NoError(t, err)

	m := omgr.New(omgr.WithJournal(st), omgr.WithBatchIDs(testutil.NewSequentialBatchIDs("batch")))
	hall, err := registry.NewObject("Room")
	require.NoError(t, err)
	lobby, err := registry.NewObject("Room")
	require.NoError(t, err)
	fx.Hall = m.RegisterObject(hall)
	fx.Lobby = m.RegisterObject(lobby)

	hall.ChangeAttribute("name", "hall")
	hall.AddToSet("occupants", &schema.Record{ID: "p1"})
	hall.AddToOidList("players", fx.Lobby)
	hall.StartTransaction()
	hall.ChangeAttribute("score", int64(4))
	hall.UpdateElement("seats", 1, int64(7))
	hall.CommitTransaction()
	lobby.ChangeAttribute("name", "lobby")

	ctx := context.Background()
	for range 100 {
		if m.Drain(ctx) == 0 {
			break
		}
	}
	require.NoError(t, st.Close())
	return fx
}
