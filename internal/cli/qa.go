package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chatkit/internal/rag"
	"chatkit/internal/runner"
)

// NewQACmd creates the qa command: answer a question from local documents.
func NewQACmd() *cobra.Command {
	var (
		files      []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "qa <question>",
		Short: "Answer a question from text documents",
		Long: `Answer a question using only the given documents.

The documents are split into overlapping chunks, embedded, and the most
relevant chunks are picked with MMR. The model answers from those chunks
alone and cites them as [[n]]. Without --file the document is read from
stdin.`,
		Example: `  # Ask about a local file
  chatkit qa -f policy.txt "七天内可以退货吗"

  # Pipe a document in
  cat manual.txt | chatkit qa "怎么重置密码"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := mustCLIContext(cmd)
			if err != nil {
				return err
			}

			text, err := readDocuments(cmd.InOrStdin(), files)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			streamed := false
			hooks := runner.Hooks{}
			if !jsonOutput {
				hooks.OnPartial = func(s string) {
					streamed = true
					fmt.Fprint(out, s)
				}
			}

			ans, err := cliCtx.QA().AskText(cmd.Context(), strings.Join(args, " "), text, hooks)
			switch {
			case errors.Is(err, rag.ErrEmptyQuestion), errors.Is(err, rag.ErrNoChunks):
				return err
			case err != nil:
				return errors.New(runner.ErrorMessage(err))
			}

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			if !streamed {
				fmt.Fprint(out, ans.Answer)
			}
			fmt.Fprintln(out)
			for _, c := range ans.Chunks {
				fmt.Fprintf(out, "[%d] %s\n", c.Number, truncate(c.Text, 60))
			}
			if ans.Injection.HasRisk {
				fmt.Fprintf(out, "warning: chunks %v look like prompt injection\n", ans.Injection.Flagged)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "document file (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the answer, sources and chunks as JSON")

	return cmd
}

func readDocuments(stdin io.Reader, files []string) (string, error) {
	if len(files) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	parts := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("failed to read document: %w", err)
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}
