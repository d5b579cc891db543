package ui

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// For long-running operations (loading, streaming) we show a spinner
// indicator on stderr so it never mixes with streamed content on stdout.

const (
	IndicatorGenerating = "Generating..."
)

type Indicator struct {
	mu sync.Mutex
	s  *spinner.Spinner
}

var (
	globalIndicator *Indicator
	indicatorOnce   sync.Once
)

// GetIndicator returns the singleton indicator instance
func GetIndicator() *Indicator {
	indicatorOnce.Do(func() {
		globalIndicator = &Indicator{}
		globalIndicator.setupSpinner()
	})
	return globalIndicator
}

func (i *Indicator) setupSpinner() {
	i.s = spinner.New(spinner.CharSets[14],
		100*time.Millisecond,
		spinner.WithWriter(os.Stderr))
	i.s.Color("fgHiMagenta", "bold")
}

func (i *Indicator) IsActive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.s.Active()
}

func (i *Indicator) Start(text string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if text == "" {
		text = IndicatorGenerating
	}
	if i.s.Active() {
		i.s.Stop()
	}
	i.s.Suffix = fmt.Sprintf(" %s", text)
	i.s.Start()
}

func (i *Indicator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.s.Active() {
		i.s.Stop()
	}
}
