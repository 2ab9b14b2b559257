package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chatkit/internal/tools"
)

// NewToolCmd creates the tool command.
func NewToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tool",
		Aliases: []string{"tools"},
		Short:   "Inspect and execute built-in tools",
		Long:    `List the built-in tools, view their parameter schemas, and run them directly.`,
	}

	cmd.AddCommand(newToolListCmd())
	cmd.AddCommand(newToolInfoCmd())
	cmd.AddCommand(newToolRunCmd())

	return cmd
}

func newToolListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all built-in tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := toolRegistry(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if jsonOutput {
				defs, err := registry.ToProviderTools()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, t := range registry.List() {
				fmt.Fprintf(w, "%s\t%s\n", t.Name(), truncate(t.Description(), 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output tool definitions as JSON")

	return cmd
}

func newToolInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <tool-name>",
		Short: "Show tool details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := toolRegistry(cmd)
			if err != nil {
				return err
			}
			t, ok := registry.Get(args[0])
			if !ok {
				return tools.NewToolNotFoundError(args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", t.Name())
			fmt.Fprintf(out, "Description: %s\n", t.Description())
			schema, err := json.MarshalIndent(t.Parameters(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Parameters:\n%s\n", schema)
			return nil
		},
	}
}

func newToolRunCmd() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "run <tool-name>",
		Short: "Execute a tool",
		Example: `  chatkit tool run calculator --args '{"num1":10,"num2":5,"operation":"add"}'
  chatkit tool run weatherTool --args '{"city":"北京"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := toolRegistry(cmd)
			if err != nil {
				return err
			}
			// 与模型调用走同一条参数解析（含 JSON 修复）
			params, err := tools.ParseArguments(argsJSON)
			if err != nil {
				return fmt.Errorf("invalid --args: %w", err)
			}

			result, err := registry.Execute(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tools.FormatResult(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "{}", "tool arguments as a JSON object")

	return cmd
}

func toolRegistry(cmd *cobra.Command) (*tools.Registry, error) {
	cliCtx, err := mustCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return cliCtx.Registry()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
