package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner is a blocking terminal spinner for the phases before the call view
// takes over the screen, like dialing the signaling server.
type Spinner struct {
	message  string
	frames   []string
	interval time.Duration
	done     chan struct{}
	stopped  bool
}

func newSpinner(message string, style spinner.Spinner, interval time.Duration) *Spinner {
	return &Spinner{
		message:  message,
		frames:   style.Frames,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// NewSpinner creates a spinner for general waiting (Dot style).
func NewSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Dot, 80*time.Millisecond)
}

// NewConnectionSpinner creates a spinner for network operations (Globe style).
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe, 180*time.Millisecond)
}

func (s *Spinner) Start() {
	go func() {
		for i := 0; ; i++ {
			select {
			case <-s.done:
				return
			default:
				frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
				fmt.Printf("\r%s %s", frame, s.message)
				time.Sleep(s.interval)
			}
		}
	}()
}

func (s *Spinner) Stop() {
	if !s.stopped {
		s.stopped = true
		close(s.done)
		fmt.Print("\r\033[K") // Clear the line
	}
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), message)
}

// RunConnectionSpinner starts a connection spinner and returns a stop function.
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}
