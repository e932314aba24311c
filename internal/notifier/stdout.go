package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints intents instead of delivering them. Used for local
// runs without a bot token and by the test-notification subcommand.
type StdoutNotifier struct {
	out io.Writer
}

func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{out: os.Stdout}
}

// NewStdoutNotifierTo writes to the given writer, used by tests.
func NewStdoutNotifierTo(out io.Writer) *StdoutNotifier {
	return &StdoutNotifier{out: out}
}

func (n *StdoutNotifier) Notify(_ context.Context, intent Intent) error {
	if intent.ImageKey != "" {
		_, err := fmt.Fprintf(n.out, "[chat %d] [%s] %s\n", intent.ChatID, intent.ImageKey, intent.Text)
		return err
	}
	_, err := fmt.Fprintf(n.out, "[chat %d] %s\n", intent.ChatID, intent.Text)
	return err
}
