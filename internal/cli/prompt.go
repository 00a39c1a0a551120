package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// askValue is what a secret flag holds when given without a value, as in
// `settings set 1 --ai-key`. It asks for the secret on the terminal.
const askValue = "?"

var errNoTerminal = errors.New("stdin is not a terminal")

// stdinIsTerminal reports whether secrets can be read interactively.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// askSecret reads one secret through a masked input field.
var askSecret = func(title, description string) (string, error) {
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description(description).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		),
	).Run()
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(title), err)
	}
	return strings.TrimSpace(value), nil
}

// promptSecret asks for a secret that the command line left out.
func promptSecret(title, description string) (string, error) {
	if !stdinIsTerminal() {
		return "", fmt.Errorf("%s: %w, pass the value inline", strings.ToLower(title), errNoTerminal)
	}
	return askSecret(title, description)
}

// secretFlag resolves a secret flag: the inline value when one was given, a
// prompt when the flag was given bare, and "" with ok=false when absent.
func secretFlag(value string, changed bool, title, description string) (secret string, ok bool, err error) {
	if !changed {
		return "", false, nil
	}
	if value != askValue {
		return value, true, nil
	}
	secret, err = promptSecret(title, description)
	if err != nil {
		return "", false, err
	}
	return secret, true, nil
}
