package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portfolio-ai/concierge/internal/corpus"
)

func newKBCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and extend the passage corpus",
	}

	cmd.AddCommand(
		newKBAddAnswerCmd(app),
		newKBListCmd(app),
		newKBValidateCmd(app),
		newKBImportPDFCmd(app),
	)

	return cmd
}

func newKBAddAnswerCmd(app *app) *cobra.Command {
	var question, answer string

	cmd := &cobra.Command{
		Use:   "add-answer",
		Short: "Add an admin-authored answer to the corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			added, err := app.admin.RecordAdminAnswer(cmd.Context(), question, answer)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %d passage(s) to %s\n", added, app.cfg.CorpusFile)
			return err
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "question the answer responds to")
	cmd.Flags().StringVar(&answer, "answer", "", "answer text")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newKBListCmd(app *app) *cobra.Command {
	var search string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List corpus passages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			passages := app.admin.Passages(cmd.Context(), search)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), passages)
			}
			out := cmd.OutOrStdout()
			for _, p := range passages {
				if _, err := fmt.Fprintf(out, "%s\t%s\t[%s]\n", p.ID, p.Title, strings.Join(p.Tags, ",")); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(out, "passages: %d\n", len(passages))
			return err
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "case-insensitive substring filter")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newKBValidateCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the corpus for missing fields and duplicates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := app.admin.Validate(cmd.Context())
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else if err := printReport(cmd, report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("knowledge base has %d error(s)", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printReport(cmd *cobra.Command, report corpus.ValidationReport) error {
	out := cmd.OutOrStdout()
	for _, e := range report.Errors {
		if _, err := fmt.Fprintf(out, "error: %s\n", e); err != nil {
			return err
		}
	}
	for _, w := range report.Warnings {
		if _, err := fmt.Fprintf(out, "warning: %s\n", w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "valid: %t (errors: %d, warnings: %d)\n", report.Valid, len(report.Errors), len(report.Warnings))
	return err
}

func newKBImportPDFCmd(app *app) *cobra.Command {
	var title string
	var tags []string

	cmd := &cobra.Command{
		Use:   "import-pdf <file>",
		Short: "Split a PDF document into corpus passages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			added, err := app.admin.ImportPDF(cmd.Context(), path, corpus.ImportOptions{
				Title: title,
				Tags:  tags,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d passage(s) from %s\n", added, filepath.Base(path))
			return err
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "title prefix for the passages (default: file name)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach to every passage (repeatable)")
	return cmd
}
