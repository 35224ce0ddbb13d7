package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines keybindings for the progress view
type KeyMap struct {
	mode string
}

// NewKeyMap creates a new keymap for the given mode
func NewKeyMap(mode string) *KeyMap {
	if mode == "" {
		mode = "vim"
	}
	return &KeyMap{mode: mode}
}

// Mode returns the current keybinding mode
func (k *KeyMap) Mode() string {
	return k.mode
}

// IsQuit returns true if the key closes the view
func (k *KeyMap) IsQuit(msg tea.KeyMsg) bool {
	return msg.String() == "q" || msg.Type == tea.KeyCtrlC
}

// IsCancel returns true if the key requests cancellation of the running task
func (k *KeyMap) IsCancel(msg tea.KeyMsg) bool {
	if msg.String() == "c" {
		return true
	}
	return k.mode == "standard" && msg.Type == tea.KeyEsc
}

// IsHelp returns true if the key toggles help
func (k *KeyMap) IsHelp(msg tea.KeyMsg) bool {
	return msg.String() == "?"
}

// ShortHelp returns the footer text
func (k *KeyMap) ShortHelp(cancellable bool) string {
	if !cancellable {
		return "q: close  ?: help"
	}
	if k.mode == "standard" {
		return "c/esc: cancel  q: close  ?: help"
	}
	return "c: cancel  q: close  ?: help"
}

// FullHelp returns complete help text
func (k *KeyMap) FullHelp() string {
	cancel := "c       Cancel the game download"
	if k.mode == "standard" {
		cancel = "c, Esc  Cancel the game download"
	}
	return `Actions:
  ` + cancel + `
  q       Close this view
  ?       Help

Only the game download can be cancelled. Mods and
config chains always finish once they have started.`
}
