package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/onramp/internal/inbox"
	"github.com/aretw0/onramp/internal/presentation/tui"
	"github.com/aretw0/onramp/internal/sanitize"
	"github.com/aretw0/onramp/pkg/domain"
)

// Commands understood by the interactive session besides "next" and step ids.
const (
	CommandStart  = "/start"
	CommandStatus = "/status"
	CommandHelp   = "/help"
)

// PlayEngine is the part of the engine an interactive session drives.
type PlayEngine interface {
	Advance(ctx context.Context, platformUserID, command string) (*domain.ResponsePayload, error)
	Reset(ctx context.Context, platformUserID string) error
	Session(ctx context.Context, platformUserID string) (*domain.Session, error)
	Steps() []domain.StepDefinition
}

// Submitter records free text that is not a command.
type Submitter interface {
	Submit(ctx context.Context, msg inbox.Message) (inbox.Receipt, error)
}

// PlayOptions configures an interactive session.
type PlayOptions struct {
	UserID   string
	Username string
	In       io.Reader
	Out      io.Writer
	// Render defaults to tui.Plain.
	Render tui.Renderer
	// Inbox receives free text; nil means free text is answered with a hint.
	Inbox Submitter
}

// Play runs a line-oriented session for one user until the input ends,
// the user types exit, or ctx is cancelled.
func Play(ctx context.Context, eng PlayEngine, opts PlayOptions) error {
	if opts.Render == nil {
		opts.Render = tui.Plain
	}
	p := &player{eng: eng, opts: opts, steps: map[string]bool{}}
	for _, s := range eng.Steps() {
		p.steps[s.ID] = true
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	p.system("Session for %q. Type 'next' to continue, %s to restart, %s for progress, 'exit' to leave.", opts.UserID, CommandStart, CommandStatus)

	for {
		p.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(opts.Out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(opts.Out)
			return err
		case line := <-lines:
			quit, err := p.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

type player struct {
	eng   PlayEngine
	opts  PlayOptions
	steps map[string]bool
}

func (p *player) prompt() {
	fmt.Fprint(p.opts.Out, "> ")
}

// system prints a standardized system message.
func (p *player) system(format string, args ...any) {
	fmt.Fprintf(p.opts.Out, ">>> %s\n", fmt.Sprintf(format, args...))
}

// handle processes one input line. Only storage and other internal failures
// end the session; user mistakes are reported and the loop continues.
func (p *player) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "":
		return false, nil
	case "exit", "quit", "q":
		p.system("Bye!")
		return true, nil
	case CommandHelp:
		p.help()
		return false, nil
	case CommandStatus:
		return false, p.status(ctx)
	case CommandStart:
		if err := p.eng.Reset(ctx, p.opts.UserID); err != nil {
			return false, err
		}
		p.system("Progress cleared.")
		return false, p.advance(ctx, domain.CommandNext)
	}

	if cmd, err := sanitize.Command(line); err == nil && (cmd == domain.CommandNext || p.steps[cmd]) {
		return false, p.advance(ctx, cmd)
	}
	return false, p.note(ctx, line)
}

func (p *player) advance(ctx context.Context, command string) error {
	payload, err := p.eng.Advance(ctx, p.opts.UserID, command)
	if err != nil && !domain.IsUserFacing(err) {
		return err
	}
	if payload == nil {
		p.system("%v", err)
		return nil
	}

	out, rerr := p.opts.Render(payload.Narrative)
	if rerr != nil {
		out = payload.Narrative
	}
	fmt.Fprintln(p.opts.Out, strings.TrimRight(out, "\n"))

	switch {
	case payload.Replay:
		p.system("Step '%s' was already completed; showing the recorded result.", payload.StepID)
	case payload.Terminal:
		p.system("All steps completed.")
	}
	return nil
}

func (p *player) status(ctx context.Context) error {
	s, err := p.eng.Session(ctx, p.opts.UserID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		p.system("No progress yet.")
		return nil
	}
	if err != nil {
		return err
	}

	p.system("Current step: %s", s.CurrentStep)
	for _, step := range p.eng.Steps() {
		mark := " "
		if s.IsCompleted(step.ID) {
			mark = "x"
		}
		fmt.Fprintf(p.opts.Out, "    [%s] %s  %s\n", mark, step.ID, step.Title)
	}
	if s.SecureID != "" {
		p.system("Secure id: %s", s.SecureID)
	}
	return nil
}

func (p *player) note(ctx context.Context, text string) error {
	if p.opts.Inbox == nil {
		p.system("Unknown command %q. Type %s for the list of commands.", text, CommandHelp)
		return nil
	}

	receipt, err := p.opts.Inbox.Submit(ctx, inbox.Message{
		UserID:   p.opts.UserID,
		Username: p.opts.Username,
		Text:     text,
	})
	if err != nil {
		p.system("Message could not be recorded: %v", err)
		return nil
	}
	if receipt.Escalated {
		p.system("Message received. An operator has been notified.")
	} else {
		p.system("Message received.")
	}
	return nil
}

func (p *player) help() {
	p.system("Commands:")
	fmt.Fprintf(p.opts.Out, "    next          run the next step\n")
	for _, step := range p.eng.Steps() {
		fmt.Fprintf(p.opts.Out, "    %-13s %s\n", step.ID, step.Title)
	}
	fmt.Fprintf(p.opts.Out, "    %-13s restart from the first step\n", CommandStart)
	fmt.Fprintf(p.opts.Out, "    %-13s show progress\n", CommandStatus)
	fmt.Fprintf(p.opts.Out, "    exit          leave the session\n")
}
