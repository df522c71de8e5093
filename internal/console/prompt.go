package console

import (
	"errors"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// Asker asks the user for one value
type Asker interface {
	Ask(label string, secret bool) (string, error)
}

// Prompter asks on the terminal with promptui
type Prompter struct{}

// Ask runs a prompt that rejects blank input. Secret input is masked.
func (Prompter) Ask(label string, secret bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("value cannot be empty")
			}
			return nil
		},
	}
	if secret {
		prompt.Mask = '*'
	}

	value, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// CanPrompt reports whether stdin is interactive
func CanPrompt() bool {
	return IsTerminal(os.Stdin)
}

// Confirm asks a yes/no question; anything but y/yes is no
func Confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}
