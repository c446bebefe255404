package cli

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dobj/internal/dobj"
)

// restoreLogging undoes the process-wide settings applied by the root
// command's configuration step.
func restoreLogging(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		dobj.SetDefaultWarningSize(dobj.DefaultSetWarningSize)
	})
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dobjctl", cmd.Use)
	assert.Contains(t, cmd.Long, "replication scenarios")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"validate", "run", "replay", "trace"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
			assert.True(t, sub.SilenceUsage)
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"run", []string{"update", "filter", "golden"}},
		{"replay", []string{"db", "classes", "oid"}},
		{"trace", []string{"db", "oid", "kind", "batch"}},
	}

	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	restoreLogging(t)
	_, _, err := execute(NewRootCommand(), "--format", "xml", "validate", "classes.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidConfigIsCommandError(t *testing.T) {
	restoreLogging(t)
	t.Setenv("DOBJ_LOG_LEVEL", "loud")

	_, _, err := execute(NewRootCommand(), "validate", "classes.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPathsDefaultFromEnvironment(t *testing.T) {
	restoreLogging(t)
	fx := buildJournal(t)
	t.Setenv("DOBJ_CLASSES", fx.Classes)
	t.Setenv("DOBJ_JOURNAL", fx.DB)

	t.Run("validate", func(t *testing.T) {
		out, _, err := execute(NewRootCommand(), "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "1 class(es) valid")
	})

	t.Run("replay", func(t *testing.T) {
		out, _, err := execute(NewRootCommand(), "replay")
		require.NoError(t, err)
		assert.Contains(t, out, "All objects verified")
	})

	t.Run("trace", func(t *testing.T) {
		out, _, err := execute(NewRootCommand(), "trace")
		require.NoError(t, err)
		assert.Contains(t, out, "Timeline:")
	})
}

func TestMissingPathWithoutDefault(t *testing.T) {
	restoreLogging(t)
	t.Setenv("DOBJ_CLASSES", "")

	_, _, err := execute(NewRootCommand(), "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classes path is required")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad path"), ExitCommandError},
		{"wrapped", WrapExitError(ExitFailure, "failed", errors.New("inner")), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("disk on fire")
	err := WrapExitError(ExitCommandError, "failed to open journal", inner)
	assert.Equal(t, "failed to open journal: disk on fire", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bad path", NewExitError(ExitCommandError, "bad path").Error())
}

func TestPathOrDefault(t *testing.T) {
	p, err := pathOrDefault([]string{"a.cue"}, "b.cue", "classes")
	require.NoError(t, err)
	assert.Equal(t, "a.cue", p)

	p, err = pathOrDefault(nil, filepath.Join("x", "b.cue"), "classes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("x", "b.cue"), p)

	_, err = pathOrDefault(nil, "", "classes")
	require.Error(t, err)
}
