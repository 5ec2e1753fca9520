package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"truthscan/internal/fingerprint"
)

func newMatchAuthorCommand(ctx *commandContext) *cobra.Command {
	var filePath string
	var fingerprints string

	cmd := &cobra.Command{
		Use:   "match-author [text]",
		Short: "Rank fingerprinted authors by similarity to a text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			text, err := readMatchInput(cmd.InOrStdin(), filePath, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("no text to match: pass it as an argument, --file, or on stdin")
			}

			path := fingerprints
			if path == "" {
				path = cfg.Fingerprints
			}
			authors, err := fingerprint.LoadFile(path)
			if err != nil {
				return err
			}
			result, err := fingerprint.Match(text, authors)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ctx.wantJSON(out) {
				return writeJSON(out, result)
			}
			ranking := append([]fingerprint.AuthorScore(nil), result.Ranking...)
			sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Score > ranking[j].Score })
			rows := make([][]string, 0, len(ranking))
			for i, score := range ranking {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					score.Author,
					fmt.Sprintf("%.4f", score.Score),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Author", "Score"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))
			fmt.Fprintf(out, "Best match: %s (%.1f%%)\n", result.Author, result.Confidence*100)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read the text from a file (- for stdin)")
	cmd.Flags().StringVar(&fingerprints, "fingerprints", "", "Fingerprint YAML file (defaults to AUTHOR_FINGERPRINTS)")
	return cmd
}

func readMatchInput(stdin io.Reader, filePath string, args []string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case filePath == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filePath, err)
		}
		return string(data), nil
	}
	return "", nil
}
