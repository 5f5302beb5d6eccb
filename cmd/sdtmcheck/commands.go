package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sdtm/internal/compliance"
	"github.com/JonMunkholm/sdtm/internal/core"
	_ "github.com/JonMunkholm/sdtm/internal/core/rules" // Register code rule sets
	"github.com/JonMunkholm/sdtm/internal/logging"
	"github.com/JonMunkholm/sdtm/internal/report"
	"github.com/JonMunkholm/sdtm/internal/standards"
	"github.com/JonMunkholm/sdtm/internal/store"
)

// readConcurrency bounds how many input files are read at once.
const readConcurrency = 4

// exitError carries a process exit code without printing anything.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type globalOptions struct {
	logLevel     string
	logFormat    string
	standardsDir string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "sdtmcheck",
		Short:         "Check SDTM datasets against CDISC standards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(opts.logLevel, opts.logFormat)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	root.PersistentFlags().StringVar(&opts.standardsDir, "standards-dir", os.Getenv("STANDARDS_DIR"), "directory of extra standard definitions")

	root.AddCommand(newRunCmd(opts), newStandardsCmd(opts))
	return root
}

// newLoader returns the bundled loader plus any directory sources.
func newLoader(opts *globalOptions) (*standards.Loader, error) {
	loader, err := standards.NewDefaultLoader()
	if err != nil {
		return nil, err
	}
	if opts.standardsDir != "" {
		if _, err := loader.LoadDir(opts.standardsDir); err != nil {
			return nil, err
		}
	}
	return loader, nil
}

// ============================================================================
// run
// ============================================================================

type runOptions struct {
	standard   string
	outXLSX    string
	defineXML  string
	defineHTML string
	asJSON     bool
	failOn     string
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] FILE...",
		Short: "Run a compliance check over CSV, XPT or Parquet datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), global, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.standard, "standard", "s", compliance.DefaultStandardID, "standard id")
	f.StringVar(&opts.outXLSX, "out-xlsx", "", "write the Excel report to this path")
	f.StringVar(&opts.defineXML, "define-xml", "", "write the Define-XML snapshot to this path")
	f.StringVar(&opts.defineHTML, "define-html", "", "write the Define HTML view to this path")
	f.BoolVar(&opts.asJSON, "json", false, "print the run summary as JSON")
	f.StringVar(&opts.failOn, "fail-on", "error", "exit 2 when findings reach this severity (error, warning, none)")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, global *globalOptions, opts *runOptions, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.failOn {
	case "error", "warning", "none":
	default:
		return fmt.Errorf("--fail-on must be error, warning or none, got %q", opts.failOn)
	}

	loader, err := newLoader(global)
	if err != nil {
		return err
	}
	svc, err := compliance.NewService(compliance.Options{
		Registry: core.DefaultRegistry(),
		Loader:   loader,
		Store:    store.NewMemory(),
		MaxFiles: len(paths),
	})
	if err != nil {
		return err
	}

	uploads, err := readFiles(ctx, paths)
	if err != nil {
		return err
	}

	summary, err := svc.Run(ctx, opts.standard, uploads)
	if err != nil {
		return fmt.Errorf("%s", core.FormatUserError(err))
	}

	if err := writeReports(summary, opts); err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(out, summary)
	}

	if failed(summary.Summary, opts.failOn) {
		return &exitError{code: 2}
	}
	return nil
}

// readFiles loads every path concurrently, keeping argument order.
func readFiles(ctx context.Context, paths []string) ([]compliance.Upload, error) {
	uploads := make([]compliance.Upload, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read dataset: %w", err)
			}
			uploads[i] = compliance.Upload{Name: filepath.Base(path), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploads, nil
}

func writeReports(summary *core.RunSummary, opts *runOptions) error {
	writers := []struct {
		path  string
		write func(io.Writer) error
	}{
		{opts.outXLSX, func(w io.Writer) error { return report.WriteWorkbook(w, summary) }},
		{opts.defineXML, func(w io.Writer) error { return report.WriteDefineXML(w, summary) }},
		{opts.defineHTML, func(w io.Writer) error {
			return report.DefineHTML(summary).Render(context.Background(), w)
		}},
	}

	for _, rw := range writers {
		if rw.path == "" {
			continue
		}
		if err := writeFile(rw.path, rw.write); err != nil {
			return fmt.Errorf("write %s: %w", rw.path, err)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(out io.Writer, s *core.RunSummary) {
	fmt.Fprintf(out, "Run %s against %s: %d findings (%d errors, %d warnings)\n",
		s.ID, s.StandardID, s.Summary.Total, s.Summary.Errors, s.Summary.Warnings)
	if len(s.Findings) == 0 {
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tDOMAIN\tVARIABLE\tRULE\tMESSAGE")
	for _, f := range s.Findings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			strings.ToUpper(string(f.Severity)), f.Domain, dash(f.Variable), dash(f.RuleID), f.Message)
	}
	tw.Flush()
}

func failed(c core.Counts, failOn string) bool {
	switch failOn {
	case "error":
		return c.Errors > 0
	case "warning":
		return c.Errors > 0 || c.Warnings > 0
	default:
		return false
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ============================================================================
// standards
// ============================================================================

func newStandardsCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "standards",
		Short: "Inspect available standards",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the standard catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := newLoader(global)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tGROUP\tNAME\tSOURCE")
			for _, s := range loader.Catalog().List() {
				source := "code rules"
				if !core.DefaultRegistry().Has(s.ID) {
					source = "definition"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Group, s.Label(), source)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a standard definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := newLoader(global)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			def, err := loader.Load(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := standards.MarshalYAML(def)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
