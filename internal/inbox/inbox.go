package inbox

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/onramp/internal/logging"
	"github.com/aretw0/onramp/internal/sanitize"
	"github.com/google/uuid"
)

// DefaultKeywords mark a message as a request for human help.
var DefaultKeywords = []string{
	"help", "issue", "stuck", "error", "question", "support", "bug",
	"feedback", "problem", "agent", "contact", "assistance", "trouble",
	"confused", "dont understand", "don't understand", "how to", "howto",
}

// Header is the first row of a new journal file.
var Header = []string{"timestamp", "message_id", "user_id", "username", "text"}

// Message is a free-text message received from a user.
type Message struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Receipt reports what happened to a submitted message.
type Receipt struct {
	MessageID string   `json:"message_id"`
	Escalated bool     `json:"escalated"`
	Keywords  []string `json:"keywords,omitempty"`
}

// Notifier forwards escalated messages to an operator.
type Notifier interface {
	Notify(ctx context.Context, msg Message, keywords []string) error
}

// LogNotifier escalates by logging a warning.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, msg Message, keywords []string) error {
	n.Logger.Warn("User requested assistance",
		"user_id", msg.UserID,
		"username", msg.Username,
		"message_id", msg.ID,
		"keywords", keywords,
		"text", msg.Text,
	)
	return nil
}

// Inbox appends messages to a CSV journal. Safe for concurrent use.
type Inbox struct {
	mu     sync.Mutex
	out    *csv.Writer
	closer io.Closer

	keywords []string
	notifier Notifier
	redactor *Redactor
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Inbox.
type Option func(*Inbox)

// WithKeywords replaces the escalation keywords.
func WithKeywords(keywords []string) Option {
	return func(i *Inbox) {
		i.keywords = make([]string, 0, len(keywords))
		for _, k := range keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				i.keywords = append(i.keywords, k)
			}
		}
	}
}

// WithNotifier sets where escalations go (default: LogNotifier).
func WithNotifier(n Notifier) Option {
	return func(i *Inbox) {
		i.notifier = n
	}
}

// WithRedactor masks journaled text.
func WithRedactor(r *Redactor) Option {
	return func(i *Inbox) {
		i.redactor = r
	}
}

// WithLogger configures a logger for the Inbox.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inbox) {
		i.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Inbox) {
		i.now = now
	}
}

// New writes the journal to w. The header is not written.
func New(w io.Writer, opts ...Option) *Inbox {
	i := &Inbox{
		out:      csv.NewWriter(w),
		keywords: DefaultKeywords,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.notifier == nil {
		i.notifier = LogNotifier{Logger: i.logger}
	}
	return i
}

// Open appends to the journal at path, writing the header when the file is new.
func Open(path string, opts ...Option) (*Inbox, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}

	i := New(f, opts...)
	i.closer = f
	if info.Size() == 0 {
		if err := i.write(Header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return i, nil
}

// Submit journals the message and escalates it when it contains a keyword.
// A failing notifier is logged; the message stays journaled.
func (i *Inbox) Submit(ctx context.Context, msg Message) (Receipt, error) {
	userID, err := sanitize.ID(msg.UserID)
	if err != nil {
		return Receipt{}, fmt.Errorf("user id: %w", err)
	}
	text, err := sanitize.Text(msg.Text)
	if err != nil {
		return Receipt{}, fmt.Errorf("text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Receipt{}, fmt.Errorf("text: %w", sanitize.ErrEmpty)
	}

	msg.UserID = userID
	msg.Text = text
	msg.Username, _ = sanitize.Text(msg.Username)
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = i.now()
	}

	// Journal and notifier only ever see the redacted text.
	redacted := msg
	redacted.Text = i.redactor.Redact(msg.Text)

	row := []string{
		msg.ReceivedAt.UTC().Format(time.RFC3339),
		msg.ID,
		msg.UserID,
		msg.Username,
		redacted.Text,
	}
	if err := i.write(row); err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{MessageID: msg.ID}
	matched := i.match(msg.Text)
	if len(matched) == 0 {
		i.logger.Debug("Message journaled", "user_id", msg.UserID, "message_id", msg.ID)
		return receipt, nil
	}

	receipt.Keywords = matched
	if err := i.notifier.Notify(ctx, redacted, matched); err != nil {
		i.logger.Error("Failed to escalate message", "user_id", msg.UserID, "message_id", msg.ID, "err", err)
		return receipt, nil
	}
	receipt.Escalated = true
	return receipt, nil
}

func (i *Inbox) match(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, k := range i.keywords {
		if strings.Contains(lower, k) {
			out = append(out, k)
		}
	}
	return out
}

func (i *Inbox) write(row []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.out.Write(row); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	i.out.Flush()
	if err := i.out.Error(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	return nil
}

// Close closes the journal file opened by Open.
func (i *Inbox) Close() error {
	if i.closer == nil {
		return nil
	}
	err := i.closer.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
