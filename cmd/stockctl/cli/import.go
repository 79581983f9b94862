// Package cli implements the stockctl subcommands.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/odyssey-erp/stockbook/internal/apiclient"
	"github.com/odyssey-erp/stockbook/internal/gate"
	"github.com/odyssey-erp/stockbook/internal/imports"
)

// Exit codes returned by ImportCommand.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitPartial = 2
)

// ImportOptions defines the inputs of the import command.
type ImportOptions struct {
	File           string
	OrganizationID string
	UserID         string
	// Policy pre-answers the duplicate prompt when set.
	Policy string
	// Yes pre-confirms folder creation.
	Yes     bool
	Backend gate.Backend
	// Registry shares the one-import-per-organization rule across commands. Nil uses a private one.
	Registry *gate.Registry
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// ImportCommand drives one import through the confirmation gate and prints the report.
func ImportCommand(ctx context.Context, opts ImportOptions) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.OrganizationID == "" || opts.UserID == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "import: --org and --user are required")
		return ExitFailed
	}
	var preset imports.Policy
	if opts.Policy != "" {
		p, err := imports.ParsePolicy(opts.Policy)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
			return ExitFailed
		}
		preset = p
	}
	data, err := os.ReadFile(opts.File)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "import: read %s: %v\n", opts.File, err)
		return ExitFailed
	}

	reg := opts.Registry
	if reg == nil {
		reg = gate.NewRegistry()
	}
	g, err := reg.Open(gate.Config{
		OrganizationID: opts.OrganizationID,
		UserID:         opts.UserID,
		Backend:        opts.Backend,
	})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "import: %s\n", describe(err))
		return ExitFailed
	}
	in := bufio.NewScanner(opts.Stdin)

	st, err := g.Handle(ctx, gate.FileSelected{Name: filepath.Base(opts.File), Data: data})
	for {
		switch s := st.(type) {
		case gate.Idle:
			_, _ = fmt.Fprintf(opts.Stderr, "import: %v\n", err)
			return ExitFailed

		case gate.DuplicateWarning:
			if err != nil {
				_, _ = fmt.Fprintf(opts.Stderr, "%v\n", err)
			}
			renderDuplicates(opts.Stdout, s.Duplicates)
			policy := preset
			if policy == "" {
				answer, ok := prompt(opts.Stdout, in, "Duplicate policy [skip/add_to_stock/update/abort]: ")
				if !ok || answer == "abort" {
					st, err = g.Handle(ctx, gate.Abort{Reason: "duplicate policy declined"})
					continue
				}
				policy = imports.Policy(answer)
			}
			st, err = g.Handle(ctx, gate.PolicyChosen{Policy: policy})

		case gate.NewFolderConfirmation:
			_, _ = fmt.Fprintf(opts.Stdout, "%d new folder(s) will be created:\n", len(s.Folders))
			for _, name := range s.Folders {
				_, _ = fmt.Fprintf(opts.Stdout, "  - %s\n", name)
			}
			confirmed := opts.Yes
			if !confirmed {
				answer, ok := prompt(opts.Stdout, in, "Create these folders and continue? [y/N]: ")
				confirmed = ok && (answer == "y" || answer == "yes")
			}
			if !confirmed {
				st, err = g.Handle(ctx, gate.Abort{Reason: "folder creation declined"})
				continue
			}
			st, err = g.Handle(ctx, gate.FoldersConfirmed{})

		case gate.Committed:
			renderReport(opts.Stdout, s.Report)
			switch {
			case len(s.Report.Errors) == 0:
				return ExitOK
			case s.Report.Success:
				return ExitPartial
			default:
				return ExitFailed
			}

		case gate.Aborted:
			_, _ = fmt.Fprintf(opts.Stderr, "import aborted: %s\n", s.Reason)
			if s.Err != nil {
				_, _ = fmt.Fprintf(opts.Stderr, "  cause: %v\n", describe(s.Err))
			}
			if s.FilePath != "" {
				_, _ = fmt.Fprintf(opts.Stderr, "  uploaded file left at %s\n", s.FilePath)
			}
			return ExitFailed

		default:
			_, _ = fmt.Fprintf(opts.Stderr, "import: unexpected state %s: %v\n", st.Kind(), err)
			return ExitFailed
		}
	}
}

func prompt(out io.Writer, in *bufio.Scanner, question string) (string, bool) {
	_, _ = fmt.Fprint(out, question)
	if !in.Scan() {
		_, _ = fmt.Fprintln(out)
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(in.Text())), true
}

func renderDuplicates(out io.Writer, dups []imports.Duplicate) {
	_, _ = fmt.Fprintf(out, "%d SKU(s) already exist:\n", len(dups))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  ROW\tSKU\tNAME\tFILE QTY\tEXISTING QTY")
	for _, d := range dups {
		_, _ = fmt.Fprintf(tw, "  %d\t%s\t%s\t%d\t%d\n", d.Row, d.SKU, d.Name, d.CSVQuantity, d.ExistingQuantity)
	}
	_ = tw.Flush()
}

func renderReport(out io.Writer, rep imports.Report) {
	_, _ = fmt.Fprintln(out, rep.Message)
	_, _ = fmt.Fprintf(out, "inserted=%d updated=%d skipped=%d errors=%d\n",
		rep.InsertedCount, rep.UpdatedCount, rep.SkippedCount, len(rep.Errors))
	for _, w := range rep.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, e := range rep.Errors {
		_, _ = fmt.Fprintf(out, "  %s\n", e)
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, imports.ErrImportInProgress):
		return "another import is running for this organization"
	case errors.Is(err, apiclient.ErrAuth):
		return "session rejected; check --session, --org and --user"
	default:
		return err.Error()
	}
}
