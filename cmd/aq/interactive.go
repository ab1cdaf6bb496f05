package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aq-cli/aq/internal/agent"
	"github.com/aq-cli/aq/internal/approval"
	"github.com/aq-cli/aq/internal/block"
	"github.com/aq-cli/aq/internal/bus"
	"github.com/aq-cli/aq/internal/config"
	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
	"github.com/aq-cli/aq/internal/scheduler"
	"github.com/aq-cli/aq/internal/system"
	"github.com/aq-cli/aq/internal/termctx"
	"github.com/aq-cli/aq/internal/terminal"
	"github.com/aq-cli/aq/internal/tool"
)

// session holds the state one interactive attachment owns for its
// lifetime: the child shell, the C10 input machine, and the C11/C12
// observers that watch the shell's own output stream.
type session struct {
	machine   *terminal.Machine
	tracker   *block.Tracker
	collector *termctx.Collector
}

// runInteractive attaches aq to a child shell: the real terminal's raw
// keystrokes are fed through the C10 machine, which decides what passes
// straight through to the shell versus what starts, confirms, or answers
// an agent turn (§4.10).
func runInteractive() error {
	ctx := context.Background()

	p, model, err := resolveProvider(ctx)
	if err != nil {
		return err
	}

	reg := buildToolRegistry()
	buildExecutor(p, model, reg)

	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	raw, err := terminal.EnableRawStdin()
	if err != nil {
		// Not attached to a real TTY (e.g. under a test harness or CI);
		// fall back to treating whatever came in as a single message.
		return runPipedFallback(ctx, p, model, reg)
	}
	defer raw.Restore()

	cmd := exec.Command(shellPath)
	cmd.Env = os.Environ()
	childIn, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	childOut, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	dir := cwd()
	sessionID := newSessionID()
	hooksEngine := newHooksEngine(sessionID)
	settings, err := config.Load()
	if err != nil {
		settings = config.Default()
	}
	sessionPerms := config.NewSessionPermissions()
	tracker := block.New()
	tracker.SetCwd(dir)
	collector := termctx.New(dir, shellPath)
	collector.AttachTracker(tracker)

	sess := &session{
		machine:   terminal.New(),
		tracker:   tracker,
		collector: collector,
	}

	fmt.Fprintln(os.Stderr, "aq attached. Type \"@ \" to start an agent turn.")

	resizeCh := make(chan os.Signal, 1)
	signal.Notify(resizeCh, syscall.SIGWINCH)
	defer signal.Stop(resizeCh)

	stdinBytes := make(chan byte, 256)
	go func() {
		r := bufio.NewReader(os.Stdin)
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(stdinBytes)
				return
			}
			stdinBytes <- b
		}
	}()

	childDone := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := childOut.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				os.Stdout.Write(chunk)
				sess.machine.HandleShellOutput(chunk)
				tracker.Feed(chunk)
				collector.PushOutput(chunk)
			}
			if err != nil {
				close(childDone)
				return
			}
		}
	}()

	var history []message.ChatMessage
	var confirmCh chan scheduler.ConfirmationRequest
	var askCh chan tool.AskUserRequest
	var turnBus *bus.Bus
	var pendingCall string
	var pendingAsk string
	var turnCancel context.CancelFunc
	turnDone := make(chan agent.Result, 1)

	for {
		select {
		case <-childDone:
			return nil
		case b, ok := <-stdinBytes:
			if !ok {
				childIn.Close()
				cmd.Wait()
				return nil
			}
			actions := sess.machine.HandleInput(b)
			for _, a := range actions {
				switch a.Kind {
				case terminal.ActionForward:
					childIn.Write(a.Bytes)
				case terminal.ActionEchoAtSign:
					os.Stdout.Write([]byte("@"))
				case terminal.ActionEraseLocalEcho:
					os.Stdout.Write([]byte("\b \b"))
				case terminal.ActionAbortCapture:
					os.Stdout.Write([]byte("\r\n(cancelled)\r\n"))
				case terminal.ActionAbort:
					if turnCancel != nil {
						turnCancel()
					}
					os.Stdout.Write([]byte("\r\n(aborting)\r\n"))
				case terminal.ActionStartAgent:
					query := a.Query
					os.Stdout.Write([]byte("\r\n"))
					sess.machine.EnterAgentStreaming()

					b2 := bus.New()
					turnBus = b2
					confirmCh = make(chan scheduler.ConfirmationRequest, 4)
					askCh = make(chan tool.AskUserRequest, 4)
					b2.On(bus.ToolConfirmationRequest, func(payload any) {
						if req, ok := payload.(scheduler.ConfirmationRequest); ok {
							confirmCh <- req
						}
					})
					b2.On(bus.AskUserRequest, func(payload any) {
						if req, ok := payload.(tool.AskUserRequest); ok {
							askCh <- req
						}
					})

					l := agent.New(p, model, reg, b2, approval.NewPathTracker())
					l.Scheduler.Policy = scheduler.RulePolicy(settings, sessionPerms)
					l.Callbacks = agent.Callbacks{
						OnContent: func(text string) { fmt.Print(text) },
						OnError:   func(msg string) { fmt.Fprintln(os.Stderr, "error:", msg) },
						OnNotice:  func(msg string) { fmt.Fprintln(os.Stderr, "("+msg+")") },
					}

					sys := system.System{
						Provider: p.Name(),
						Model:    model,
						Cwd:      dir,
						IsGit:    isGitRepo(dir),
						Tools:    reg.Names(),
						Extra:    []string{collector.ToPromptString(10)},
						Hooks:    hooksEngine,
					}
					if len(history) == 0 {
						history = append(history, message.NewSystem(sys.Prompt()))
					}
					history = append(history, message.NewUser(query))

					turnMsgs := append([]message.ChatMessage(nil), history...)
					var turnCtx context.Context
					turnCtx, turnCancel = context.WithCancel(ctx)
					go func(l *agent.Loop, msgs []message.ChatMessage, runCtx context.Context) {
						res := l.Run(runCtx, msgs, 0)
						l.Destroy()
						turnDone <- res
					}(l, turnMsgs, turnCtx)
				case terminal.ActionResolveConfirmation:
					if turnBus != nil && pendingCall != "" {
						turnBus.Emit(bus.ToolConfirmationResponse, scheduler.ConfirmationResponse{
							CallID: pendingCall, Outcome: a.Outcome,
						})
						pendingCall = ""
					}
				case terminal.ActionResolveAsk:
					if turnBus != nil && pendingAsk != "" {
						turnBus.Emit(bus.AskUserResponse, tool.AskUserResponse{
							RequestID: pendingAsk,
							Answers:   map[int][]string{0: {a.Text}},
							Cancelled: a.Text == "",
						})
						pendingAsk = ""
					}
				case terminal.ActionSuppressRepaint:
					// Resize handled; nothing to repaint locally.
				}
			}
		case res := <-turnDone:
			history = res.Messages
			turnBus = nil
			turnCancel = nil
			pendingCall = ""
			pendingAsk = ""
			sess.machine.FinishAgentTurn()
			fmt.Fprint(os.Stdout, "\r\n")
			printUsageSummary(p.Name(), res.Usage)
		case req := <-confirmCh:
			pendingCall = req.CallID
			sess.machine.EnterAgentConfirming(req.Details.Kind == message.ConfirmPathAccess)
			fmt.Fprintf(os.Stderr, "\r\nconfirm: %s\r\n[Enter=once, y=always (path access only), Ctrl+C=cancel] ", req.Details.Title)
		case req := <-askCh:
			pendingAsk = req.ID
			sess.machine.EnterAgentAsking()
			if len(req.Questions) > 0 {
				fmt.Fprintf(os.Stderr, "\r\n? %s\r\n> ", req.Questions[0].Question)
			}
		case <-resizeCh:
			actions := sess.machine.HandleResize()
			for _, a := range actions {
				if a.Kind == terminal.ActionSuppressRepaint {
					continue
				}
			}
		}
	}
}

// runPipedFallback handles the case where aq is launched interactively but
// stdin isn't a TTY (e.g. redirected from a file): there is no shell to
// attach to, so treat the first line of input as a one-shot message.
func runPipedFallback(ctx context.Context, p provider.LLMProvider, model string, reg *tool.Registry) error {
	r := bufio.NewReader(os.Stdin)
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return runNonInteractive(line)
}
