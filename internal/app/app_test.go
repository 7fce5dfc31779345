package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/you/chefkix/domain"
)

func TestLogNotifier(t *testing.T) {
	var out bytes.Buffer
	n := NewLogNotifier(&out)

	n.Toast(domain.ToastError, "Network error, please check your connection")
	n.TimerComplete("sess-1", 1)
	n.Publish(domain.NewEvent(domain.StepChangedEvent, "sess-1").WithStep(2))

	assert.Contains(t, out.String(), "[error] Network error, please check your connection\n")
	assert.Contains(t, out.String(), "timer for step 2 is done")
	assert.NotContains(t, out.String(), "STEP_CHANGED", "events go to the log, not the terminal")
}
