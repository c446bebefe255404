package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dobj/internal/schema"
)

// ClassSummary describes one compiled class.
type ClassSummary struct {
	Name   string         `json:"name"`
	Fields []FieldSummary `json:"fields"`
}

// FieldSummary describes one field of a class.
type FieldSummary struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Size int    `json:"size,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Classes []ClassSummary `json:"classes,omitempty"`
}

// ValidationFailure locates a class compile error.
type ValidationFailure struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [classes-path]",
		Short: "Compile CUE class definitions",
		Long: `Compile CUE class definitions and report their fields.

The path is a .cue file or a directory holding one CUE package. It
defaults to $DOBJ_CLASSES.

Exit codes:
  0 - All classes compiled
  1 - A class failed to compile
  2 - Command error (missing path, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathOrDefault(args, rootOpts.Config.Classes, "classes")
			if err != nil {
				return err
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("classes path not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "classes path not found", err)
	}

	formatter.VerboseLog("Compiling classes from %s", path)
	registry, err := schema.LoadClasses(path)
	if err != nil {
		_ = formatter.Error(ErrCodeClasses, "class compilation failed", describeCompileError(err))
		return WrapExitError(ExitFailure, "class compilation failed", err)
	}

	result := ValidationResult{Valid: true}
	for _, name := range registry.Names() {
		class, _ := registry.Class(name)
		result.Classes = append(result.Classes, summarizeClass(class))
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	formatter.Textf("✓ %d class(es) valid", len(result.Classes))
	for _, c := range result.Classes {
		fields := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = f.Name + " " + f.Kind
			if f.Size > 0 {
				fields[i] += fmt.Sprintf("[%d]", f.Size)
			}
		}
		formatter.Textf("  %s: %s", c.Name, strings.Join(fields, ", "))
	}
	return nil
}

func summarizeClass(c *schema.Class) ClassSummary {
	s := ClassSummary{Name: c.Name, Fields: make([]FieldSummary, len(c.Fields))}
	for i, f := range c.Fields {
		s.Fields[i] = FieldSummary{Name: f.Name, Kind: string(f.Kind), Size: f.Size}
	}
	return s
}

func describeCompileError(err error) ValidationFailure {
	var ce *schema.CompileError
	if !errors.As(err, &ce) {
		return ValidationFailure{Field: "load", Message: err.Error()}
	}
	failure := ValidationFailure{Field: ce.Field, Message: ce.Message}
	if ce.Pos.IsValid() {
		failure.File = ce.Pos.Filename()
		failure.Line = ce.Pos.Line()
	}
	return failure
}
