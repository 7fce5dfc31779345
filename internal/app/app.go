package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/you/chefkix/domain"
)

// LogNotifier renders toasts and timer alerts as terminal lines. It is the
// Notifier used by the CLI.
type LogNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLogNotifier writes to out, or stdout when out is nil
func NewLogNotifier(out io.Writer) *LogNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &LogNotifier{out: out}
}

// Toast implements domain.Notifier
func (n *LogNotifier) Toast(level domain.ToastLevel, message string) {
	n.printf("[%s] %s\n", level, message)
}

// TimerComplete implements domain.Notifier. The bell character stands in for sound.
func (n *LogNotifier) TimerComplete(sessionID string, stepIndex int) {
	n.printf("\a⏰ timer for step %d is done\n", stepIndex+1)
}

// Publish implements domain.Notifier
func (n *LogNotifier) Publish(event *domain.Event) {
	if event.SessionID != "" {
		log.Printf("event: %s session=%s step=%d", event.Type, event.SessionID, event.StepIndex)
		return
	}
	log.Printf("event: %s", event.Type)
}

func (n *LogNotifier) printf(format string, args ...interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, format, args...)
}

var _ domain.Notifier = (*LogNotifier)(nil)
