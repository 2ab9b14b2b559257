package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chatkit/internal/gateway/handlers"
	"chatkit/internal/provider"
	"chatkit/internal/runner"
	"chatkit/internal/storage"
)

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	var (
		sessionID string
		resume    bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant",
		Long: `Chat with the assistant in the terminal.

With a message argument a single turn is answered. Without one an
interactive session starts. Turns are saved to the local transcript
database unless storage is disabled.

With workflow.enabled (the default) the model first decides between a
direct answer and a travel workflow plan, and is not offered the tools.
Set workflow.enabled to false to let it call calculator and the other
tools directly.`,
		Example: `  # Interactive chat
  chatkit chat

  # Single message
  chatkit chat "10 加 5 等于几"

  # Continue the most recent session
  chatkit chat --continue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := mustCLIContext(cmd)
			if err != nil {
				return err
			}
			s, err := newChatSession(cmd, cliCtx)
			if err != nil {
				return err
			}
			if err := s.resolve(sessionID, resume); err != nil {
				return err
			}

			if len(args) > 0 {
				return s.turn(strings.Join(args, " "))
			}
			return s.interactive(cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID to continue")
	cmd.Flags().BoolVar(&resume, "continue", false, "continue the most recent session")

	return cmd
}

// NewAskCmd creates the ask command: one stateless turn.
func NewAskCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a single question without saving it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := mustCLIContext(cmd)
			if err != nil {
				return err
			}
			r, err := cliCtx.Runner()
			if err != nil {
				return err
			}
			chat := handlers.NewChat(r, nil, cliCtx.Config.Provider.Model)
			resp, err := chat.Complete(cmd.Context(), handlers.ChatRequest{Message: strings.Join(args, " ")}, runner.Hooks{})
			if err != nil {
				return errors.New(runner.ErrorMessage(err))
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(out, resp.Content)
			if cliCtx.Config.Runner.ShowDebug && resp.Debug != "" {
				fmt.Fprintf(out, "\n[debug] %s\n", resp.Debug)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the full response as JSON")

	return cmd
}

// chatSession drives terminal turns through the same chat service the
// gateway uses.
type chatSession struct {
	cmd       *cobra.Command
	cliCtx    *CLIContext
	chat      *handlers.Chat
	store     *storage.DB
	sessionID string
	// history is kept locally when storage is disabled
	history []provider.Message
}

func newChatSession(cmd *cobra.Command, cliCtx *CLIContext) (*chatSession, error) {
	r, err := cliCtx.Runner()
	if err != nil {
		return nil, err
	}
	store, err := cliCtx.GetStorage()
	if err != nil {
		return nil, err
	}

	var transcripts handlers.Transcripts
	if store != nil {
		transcripts = store
	}
	return &chatSession{
		cmd:    cmd,
		cliCtx: cliCtx,
		chat:   handlers.NewChat(r, transcripts, cliCtx.Config.Provider.Model),
		store:  store,
	}, nil
}

func (s *chatSession) resolve(sessionID string, resume bool) error {
	if sessionID == "" && !resume {
		return nil
	}
	if s.store == nil {
		return errors.New("session storage is disabled")
	}
	if sessionID != "" {
		if _, err := s.store.GetSession(sessionID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("session not found: %s", sessionID)
			}
			return err
		}
		s.sessionID = sessionID
		return nil
	}

	last, err := s.store.LastSession()
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.sessionID = last.ID
	fmt.Fprintf(s.cmd.OutOrStdout(), "Continuing session %s (%s)\n", last.ID, last.Title)
	return nil
}

func (s *chatSession) turn(message string) error {
	out := s.cmd.OutOrStdout()
	streamed := false
	hooks := runner.Hooks{
		OnPartial: func(text string) {
			streamed = true
			fmt.Fprint(out, text)
		},
		OnToolEvent: func(ev runner.ToolEvent) {
			switch ev.Type {
			case runner.ToolEventStart:
				fmt.Fprintf(out, "\n[Calling tool: %s]\n", ev.ToolName)
			case runner.ToolEventError:
				fmt.Fprintf(out, "[Tool %s failed]: %s\n", ev.ToolName, ev.Error)
			}
		},
		OnPlanning: func(u runner.PlanningUpdate) {
			if s.cliCtx.Verbose && u.Detail != "" {
				fmt.Fprintf(out, "[%s] %s\n", u.Stage, u.Detail)
			}
		},
	}

	req := handlers.ChatRequest{SessionID: s.sessionID, Message: message, History: s.history}
	resp, err := s.chat.Complete(s.cmd.Context(), req, hooks)
	if err != nil {
		return errors.New(runner.ErrorMessage(err))
	}

	if !streamed {
		fmt.Fprint(out, resp.Content)
	}
	fmt.Fprintln(out)
	if s.cliCtx.Config.Runner.ShowDebug && resp.Debug != "" {
		fmt.Fprintf(out, "[debug] %s\n", resp.Debug)
	}

	s.sessionID = resp.SessionID
	if s.store == nil {
		s.history = append(s.history, provider.UserMessage(message), provider.AssistantMessage(resp.Content))
	}
	return nil
}

func (s *chatSession) interactive(in io.Reader) error {
	out := s.cmd.OutOrStdout()
	// 非终端输入（管道）时不打印提示符
	tty := false
	if f, ok := in.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}

	if tty {
		fmt.Fprintln(out, "chatkit interactive chat")
		fmt.Fprintln(out, "------------------------")
		fmt.Fprintln(out, "Type 'exit' or 'quit' to end the session")
		fmt.Fprintln(out, "Type 'clear' to start a new conversation")
		fmt.Fprintln(out)
	}

	reader := bufio.NewReader(in)
	for {
		if tty {
			fmt.Fprint(out, "You: ")
		}
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		message := strings.TrimSpace(input)
		switch strings.ToLower(message) {
		case "exit", "quit":
			if tty {
				fmt.Fprintln(out, "Goodbye!")
			}
			return nil
		case "clear":
			s.sessionID = ""
			s.history = nil
			fmt.Fprintln(out, "Starting new conversation...")
		case "":
		default:
			if tty {
				fmt.Fprint(out, "Assistant: ")
			}
			if err := s.turn(message); err != nil {
				fmt.Fprintf(out, "\nError: %v\n", err)
			}
		}

		if eof {
			return nil
		}
	}
}
