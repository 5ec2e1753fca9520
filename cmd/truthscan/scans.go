package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"truthscan/internal/models"
	"truthscan/internal/scans"
	"truthscan/internal/store"
)

func newScansCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "Inspect stored scan results",
	}
	cmd.AddCommand(newScansListCommand(ctx))
	cmd.AddCommand(newScansShowCommand(ctx))
	return cmd
}

func newScansListCommand(ctx *commandContext) *cobra.Command {
	var opts store.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			rows, err := a.scans.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.wantJSON(out) {
				return writeJSON(out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No scans found")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{
					r.ScanID,
					r.Kind,
					scanStatus(&r),
					formatScore(r.Score),
					r.CreatedAt.Format("2006-01-02 15:04"),
					truncate(scanSubject(&r), 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Scan", "Kind", "Status", "Score", "Created", "Subject"},
				table,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Filter by kind (media or text)")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "Filter by user id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	return cmd
}

func newScansShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <scan_id>",
		Short: "Show the state and result of one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			res, err := a.scans.Poll(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.wantJSON(out) || res.State == scans.StateCompleted {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "Scan %s: %s\n", args[0], res.State)
			if res.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", res.Error)
			}
			return nil
		},
	}
}

func scanStatus(r *models.ScanResult) string {
	switch {
	case r.IsPlaceholder():
		return "pending"
	case r.MismatchReason != nil:
		return "mismatch"
	default:
		return "done"
	}
}

func scanSubject(r *models.ScanResult) string {
	if r.Kind == models.ScanKindText {
		return r.Text
	}
	return r.Caption
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *score)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
