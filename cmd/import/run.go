package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/surveyimport/internal/application"
	"github.com/JonMunkholm/surveyimport/internal/config"
	"github.com/JonMunkholm/surveyimport/internal/core"
	"github.com/JonMunkholm/surveyimport/internal/logging"
)

type runOptions struct {
	surveyID      string
	file          string
	proceedAnyway bool
	jsonOutput    bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate a file and submit its answers to a survey",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.surveyID, "survey", "", "Survey hash id (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or .xlsx file to import (required)")
	cmd.Flags().BoolVar(&opts.proceedAnyway, "proceed-anyway", false, "Skip rows without a usable NPS score instead of stopping")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the final status as JSON")

	_ = cmd.MarkFlagRequired("survey")
	_ = cmd.MarkFlagRequired("file")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(opts.surveyID) == "" {
			return withCode(exitUsage, core.ErrMissingSurveyID)
		}
		return nil
	}

	return cmd
}

func runImport(ctx context.Context, out io.Writer, opts runOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return withCode(exitUsage, err)
	}
	// Logs go to stderr so stdout carries only the result.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	app, err := application.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return importFile(ctx, app.Service, out, opts)
}

// importFile drives one run to completion on svc.
func importFile(ctx context.Context, svc *core.Service, out io.Writer, opts runOptions) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer f.Close()

	st, err := svc.StartImport(ctx, opts.surveyID, filepath.Base(opts.file), f)
	if err != nil {
		return withCode(exitCodeFor(err), userError(err))
	}

	if st.Phase == core.PhaseValidationFailed {
		if !opts.proceedAnyway || !st.CanProceedAnyway() {
			printStatus(out, st, opts.jsonOutput)
			return withCode(exitValidation, fmt.Errorf("validation failed with %d error(s)", len(st.ValidationErrors)))
		}
		fmt.Fprintf(out, "%d validation error(s); proceeding without invalid rows\n", len(st.ValidationErrors))
		if _, err := svc.ProceedAnyway(ctx, st.RunID); err != nil {
			return withCode(exitCodeFor(err), userError(err))
		}
	}

	final, err := svc.Await(ctx, st.RunID)
	if err != nil {
		return err
	}
	if err := svc.Shutdown(ctx); err != nil {
		return err
	}

	printStatus(out, final, opts.jsonOutput)
	if final.Phase == core.PhaseError {
		return errors.New("every row failed")
	}
	return nil
}

func printStatus(out io.Writer, st core.Status, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(st)
		return
	}

	fmt.Fprintf(out, "Run:       %s\n", st.RunID)
	fmt.Fprintf(out, "Survey:    %s\n", st.SurveyID)
	fmt.Fprintf(out, "Status:    %s\n", st.Phase)
	fmt.Fprintf(out, "Rows:      %d total, %d processed, %d skipped, %d succeeded\n",
		st.TotalRows, st.ProcessedRows, st.SkippedRows, st.SuccessCount())

	if len(st.ValidationErrors) > 0 {
		fmt.Fprintln(out, "Validation errors:")
		for _, e := range st.ValidationErrors {
			fmt.Fprintf(out, "  %s\n", e.Message)
		}
	}
	if len(st.ProcessingErrors) > 0 {
		fmt.Fprintln(out, "Processing errors:")
		for _, e := range st.ProcessingErrors {
			fmt.Fprintf(out, "  %s\n", e)
		}
	}
}

// userError swaps a known error for its user-facing message. Unknown errors
// keep their technical text.
func userError(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	return core.NewUserError(err)
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, core.ErrMissingSurveyID),
		errors.Is(err, core.ErrMissingFile),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrUnsupportedFormat):
		return exitUsage
	default:
		return exitFailed
	}
}
