package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinnerSilentOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, "classifying...")
	spinner.Start()
	spinner.Stop()
	spinner.Stop()
	assert.Empty(t, buf.String())
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	spinner := NewSpinner(&bytes.Buffer{}, "x")
	spinner.Stop()
}
