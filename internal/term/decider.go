// Package term provides the decision provider abstraction: every yes/no or
// free-text choice the orchestrator needs is routed through a Decider so the
// same state machine runs interactively or headless.
package term

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Decider answers the interactive questions the workflow asks.
type Decider interface {
	// Confirm asks a yes/no question with a default answer.
	Confirm(prompt string, def bool) (bool, error)
	// Input asks for a free-text value with a suggested default.
	Input(prompt, def string) (string, error)
}

// Interactive is a terminal-backed Decider.
type Interactive struct{}

func (Interactive) Confirm(prompt string, def bool) (bool, error) {
	value := def
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(prompt).Value(&value),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return value, nil
}

func (Interactive) Input(prompt, def string) (string, error) {
	value := def
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title(prompt).Value(&value),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("input prompt: %w", err)
	}
	if value == "" {
		return def, nil
	}
	return value, nil
}

// NonInteractive answers every question with its default. Used by --yes and
// by environments without a terminal.
type NonInteractive struct{}

func (NonInteractive) Confirm(_ string, def bool) (bool, error) { return def, nil }
func (NonInteractive) Input(_, def string) (string, error)      { return def, nil }

// Scripted replays pre-supplied answers in order, falling back to defaults
// when the queues run dry. It exists for tests and headless automation.
type Scripted struct {
	Confirms []bool
	Inputs   []string

	confirmIdx int
	inputIdx   int

	// Asked records every prompt in order, for assertions.
	Asked []string
}

func (s *Scripted) Confirm(prompt string, def bool) (bool, error) {
	s.Asked = append(s.Asked, prompt)
	if s.confirmIdx < len(s.Confirms) {
		v := s.Confirms[s.confirmIdx]
		s.confirmIdx++
		return v, nil
	}
	return def, nil
}

func (s *Scripted) Input(prompt, def string) (string, error) {
	s.Asked = append(s.Asked, prompt)
	if s.inputIdx < len(s.Inputs) {
		v := s.Inputs[s.inputIdx]
		s.inputIdx++
		if v != "" {
			return v, nil
		}
	}
	return def, nil
}
