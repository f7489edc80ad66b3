package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/longkey1/rulechat/internal/agent"
	"github.com/longkey1/rulechat/internal/conversation"
	"github.com/longkey1/rulechat/internal/logging"
	"github.com/longkey1/rulechat/internal/tui"
	"github.com/spf13/cobra"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the rule agent.

By default a line-oriented prompt is used. Type '/help' for its commands.
With --tui a full-screen interface is started instead:

  Enter   send the message
  Ctrl+T  toggle decision services
  Ctrl+U  upload a PDF (Esc cancels)
  Ctrl+R  reset the conversation
  Ctrl+D  show the server-side memory
  Esc     quit

The log is saved as a transcript after every completed operation unless
save_transcripts is false or --no-save is given.

Examples:
  rulechat start                 # Line mode, RAG only
  rulechat start --tui -d        # Full screen, decision services enabled
  rulechat start -c 3f2a9c...    # Continue a backend conversation`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		useTUI, _ := cmd.Flags().GetBool("tui")
		noSave, _ := cmd.Flags().GetBool("no-save")
		convID, _ := cmd.Flags().GetString("conversation")
		useDE := cfg.DecisionServices
		if cmd.Flags().Changed("decision-services") {
			useDE, _ = cmd.Flags().GetBool("decision-services")
		}
		if noSave {
			cfg.SaveTranscripts = false
		}

		// The TUI owns the terminal, so its logs go to log_file or nowhere
		logger := newLogger(cfg, os.Stderr)
		if useTUI {
			logger = logging.Discard()
			if cfg.LogFile != "" {
				f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				logger = newLogger(cfg, f)
			}
		}

		client, err := newClient(cfg, logger)
		if err != nil {
			return err
		}

		store, err := openTranscripts()
		if err != nil {
			return err
		}
		save := newTranscriptSaver(cfg, store, logger)

		if useTUI {
			bridge := tui.NewBridge()
			defer bridge.Close()

			ctrl := newController(cfg, client, logger, convID, useDE, conversation.WithObserver(bridge.Observe))
			var opts []tui.Option
			if save != nil {
				opts = append(opts, tui.WithSaver(save))
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			p := tea.NewProgram(tui.New(ctx, ctrl, bridge, opts...), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running TUI: %w", err)
			}
			return nil
		}

		ctrl := newController(cfg, client, logger, convID, useDE)
		lm := &lineMode{
			ctrl:    ctrl,
			out:     os.Stdout,
			errOut:  os.Stderr,
			save:    save,
			store:   store.Dir(),
			apiURL:  client.BaseURL(),
			spinner: true,
		}
		if err := lm.run(context.Background(), os.Stdin); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}
		return nil
	},
}

// lineMode is the line-oriented interactive session
type lineMode struct {
	ctrl   *conversation.Controller
	out    io.Writer
	errOut io.Writer
	save   func(string, []conversation.ChatMessage) error
	store  string
	apiURL string

	lastID  string
	spinner bool // Animate while waiting, off in tests
}

// run prints the greeting, initializes the conversation and reads commands until EOF or /exit
func (l *lineMode) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(l.errOut, "\n=== %s [%s] ===\n", l.ctrl.BotName(), l.apiURL)
	fmt.Fprintf(l.errOut, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(l.errOut, "===================================\n")

	l.flush(true)
	l.wait("Connecting to the agent...", func() {
		l.ctrl.Initialize(ctx)
	})
	id := l.ctrl.ConversationID()
	if agent.IsFallbackID(id) {
		fmt.Fprintf(l.errOut, "%s\n", color.YellowString("Backend unreachable, continuing with local conversation %s", id))
	} else {
		fmt.Fprintf(l.errOut, "%s\n", color.HiBlackString("Conversation %s", id))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		// Display prompt
		fmt.Fprint(l.errOut, "\nYou> ")

		// Read input
		if !scanner.Scan() {
			// EOF (Ctrl+D) or error
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			fmt.Fprintln(l.errOut, "\nGoodbye!")
			return nil
		}

		if !l.handle(ctx, scanner.Text()) {
			return nil
		}
	}
}

// handle processes one input line. Returns false to exit.
func (l *lineMode) handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return l.command(ctx, input)
	}

	err := l.perform(ctx, func(ctx context.Context) error {
		return l.ctrl.Send(ctx, input)
	})
	l.report(err)
	l.flush(true)
	l.persist()
	return true
}

// command processes a slash command. Returns false to exit.
func (l *lineMode) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	rest := fields[1:]

	switch name {
	case "/help", "/h":
		fmt.Fprintln(l.errOut, "\nAvailable commands:")
		fmt.Fprintln(l.errOut, "  /help, /h                 - Show this help message")
		fmt.Fprintln(l.errOut, "  /info, /i                 - Show conversation information")
		fmt.Fprintln(l.errOut, "  /de [on|off]              - Toggle or set decision services")
		fmt.Fprintln(l.errOut, "  /upload <file.pdf> [text] - Upload a PDF, optionally asking about it")
		fmt.Fprintln(l.errOut, "  /reset, /r                - Reset the conversation")
		fmt.Fprintln(l.errOut, "  /debug, /d                - Show the server-side memory")
		fmt.Fprintln(l.errOut, "  /save                     - Save the transcript now")
		fmt.Fprintln(l.errOut, "  /clear, /c                - Clear screen (Unix/Linux only)")
		fmt.Fprintln(l.errOut, "  /exit, /quit              - Exit interactive mode")
		fmt.Fprintln(l.errOut, "  Ctrl+C                    - Cancel the request in progress")
		fmt.Fprintln(l.errOut, "  Ctrl+D                    - Exit interactive mode")

	case "/info", "/i":
		fmt.Fprintln(l.errOut, "\nConversation Information:")
		fmt.Fprintf(l.errOut, "  ID: %s\n", l.ctrl.ConversationID())
		fmt.Fprintf(l.errOut, "  Backend: %s\n", l.apiURL)
		fmt.Fprintf(l.errOut, "  Endpoint: %s\n", l.ctrl.BackendLabel())
		fmt.Fprintf(l.errOut, "  Messages: %d\n", len(l.ctrl.Messages()))
		if l.save != nil {
			fmt.Fprintf(l.errOut, "  Transcripts: %s\n", l.store)
		}

	case "/de":
		enabled := !l.ctrl.DecisionServices()
		if len(rest) > 0 {
			switch strings.ToLower(rest[0]) {
			case "on", "true", "1":
				enabled = true
			case "off", "false", "0":
				enabled = false
			default:
				fmt.Fprintf(l.errOut, "Usage: /de [on|off]\n")
				return true
			}
		}
		l.ctrl.SetDecisionServices(enabled)
		fmt.Fprintf(l.errOut, "Endpoint: %s\n", l.ctrl.BackendLabel())

	case "/upload", "/u":
		if len(rest) == 0 {
			fmt.Fprintf(l.errOut, "Usage: /upload <file.pdf> [question]\n")
			return true
		}
		path := rest[0]
		if err := checkPDFPath(path); err != nil {
			fmt.Fprintf(l.errOut, "Error: %v\n", err)
			return true
		}
		up := conversation.PendingUpload{
			Filename: path,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
			Prompt: strings.Join(rest[1:], " "),
		}
		err := l.perform(ctx, func(ctx context.Context) error {
			return l.ctrl.Upload(ctx, up)
		})
		l.report(err)
		l.flush(false)
		l.persist()

	case "/reset", "/r":
		err := l.perform(ctx, l.ctrl.Reset)
		if err != nil {
			fmt.Fprintf(l.errOut, "%s\n", color.YellowString("Backend not notified (%v), started a local conversation.", err))
		}
		l.flush(true)
		l.persist()

	case "/debug", "/d", "/memory":
		err := l.perform(ctx, l.ctrl.Inspect)
		l.report(err)
		l.flush(true)

	case "/save":
		if l.save == nil {
			fmt.Fprintln(l.errOut, "Transcript saving is disabled.")
			return true
		}
		if err := l.save(l.ctrl.ConversationID(), l.ctrl.Messages()); err != nil {
			fmt.Fprintf(l.errOut, "Error: %v\n", err)
			return true
		}
		fmt.Fprintf(l.errOut, "Transcript saved to %s\n", l.store)

	case "/clear", "/c":
		fmt.Fprint(l.out, "\033[H\033[2J")

	case "/exit", "/quit", "/q":
		fmt.Fprintln(l.errOut, "Goodbye!")
		return false

	default:
		fmt.Fprintf(l.errOut, "Unknown command: %s (type '/help' for available commands)\n", name)
	}
	return true
}

// perform runs op with a spinner. Ctrl+C cancels op without leaving the session.
func (l *lineMode) perform(ctx context.Context, op func(context.Context) error) error {
	opCtx, stop := interruptContext(ctx)
	defer stop()

	var err error
	l.wait("Waiting for response...", func() {
		err = op(opCtx)
	})
	return err
}

// wait shows the spinner while fn runs
func (l *lineMode) wait(label string, fn func()) {
	if !l.spinner {
		fn()
		return
	}
	done := make(chan bool)
	go showSpinner(l.errOut, label, done)
	fn()
	done <- true
	close(done)
}

func (l *lineMode) report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(l.errOut, color.YellowString("Request cancelled."))
		return
	}
	fmt.Fprintf(l.errOut, "%s\n", color.RedString("Error: %v", err))
}

func (l *lineMode) persist() {
	if l.save == nil {
		return
	}
	if err := l.save(l.ctrl.ConversationID(), l.ctrl.Messages()); err != nil {
		fmt.Fprintf(l.errOut, "Warning: failed to save transcript: %v\n", err)
	}
}

// flush prints the messages added since the last flush. After a reset the
// last printed message is gone and the whole log is printed.
func (l *lineMode) flush(skipSent bool) {
	msgs := l.ctrl.Messages()
	start := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == l.lastID {
			start = i + 1
			break
		}
	}
	for _, m := range msgs[start:] {
		if skipSent && m.IsSent() {
			continue
		}
		l.printMessage(m)
	}
	if len(msgs) > 0 {
		l.lastID = msgs[len(msgs)-1].ID
	}
}

func (l *lineMode) printMessage(m conversation.ChatMessage) {
	name := color.New(color.FgMagenta, color.Bold)
	switch {
	case m.Kind == conversation.KindError:
		name = color.New(color.FgRed, color.Bold)
	case m.Kind == conversation.KindSystem:
		name = color.New(color.FgHiBlack, color.Bold)
	case m.IsSent():
		name = color.New(color.FgGreen, color.Bold)
	}
	fmt.Fprintf(l.out, "\n%s\n%s", name.Sprint(m.DisplayName), conversation.IndentBody(m.Body))
}

// showSpinner displays a spinner animation while waiting for response
func showSpinner(w io.Writer, label string, done chan bool) {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	i := 0
	for {
		select {
		case <-done:
			// Clear the spinner line
			fmt.Fprint(w, "\r\033[K")
			return
		default:
			fmt.Fprintf(w, "\r%s %s", spinners[i], label)
			i = (i + 1) % len(spinners)
			time.Sleep(80 * time.Millisecond)
		}
	}
}

// checkPDFPath validates a file picked for upload
func checkPDFPath(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%s is not a PDF file", filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().Bool("tui", false, "Use the full-screen interface")
	startCmd.Flags().BoolP("decision-services", "d", false, "Let the agent call decision services (chat_with_tools)")
	startCmd.Flags().StringP("conversation", "c", "", "Continue an existing backend conversation")
	startCmd.Flags().Bool("no-save", false, "Do not save a transcript of this conversation")
}
