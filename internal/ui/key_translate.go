package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jordangarrison/grove/internal/interactive"
)

// translateTeaKey converts one Bubble Tea key event into zero or more
// interactive.Key values (a bracketed-paste burst of runes becomes one Key
// per rune, since the Controller's HandleKey operates one key at a time).
func translateTeaKey(msg tea.KeyMsg) []interactive.Key {
	switch msg.Type {
	case tea.KeyEnter:
		return []interactive.Key{{Kind: interactive.KeyEnter}}
	case tea.KeyTab:
		return []interactive.Key{{Kind: interactive.KeyTab}}
	case tea.KeyShiftTab:
		return []interactive.Key{{Kind: interactive.KeyBackTab}}
	case tea.KeyBackspace:
		return []interactive.Key{{Kind: interactive.KeyBackspace}}
	case tea.KeyDelete:
		return []interactive.Key{{Kind: interactive.KeyDelete}}
	case tea.KeyUp:
		return []interactive.Key{{Kind: interactive.KeyUp}}
	case tea.KeyDown:
		return []interactive.Key{{Kind: interactive.KeyDown}}
	case tea.KeyLeft:
		return []interactive.Key{{Kind: interactive.KeyLeft}}
	case tea.KeyRight:
		return []interactive.Key{{Kind: interactive.KeyRight}}
	case tea.KeyHome:
		return []interactive.Key{{Kind: interactive.KeyHome}}
	case tea.KeyEnd:
		return []interactive.Key{{Kind: interactive.KeyEnd}}
	case tea.KeyPgUp:
		return []interactive.Key{{Kind: interactive.KeyPageUp}}
	case tea.KeyPgDown:
		return []interactive.Key{{Kind: interactive.KeyPageDown}}
	case tea.KeyEsc:
		return []interactive.Key{{Kind: interactive.KeyEscape}}
	case tea.KeyCtrlBackslash:
		return []interactive.Key{{Kind: interactive.KeyCtrlBackslash}}
	case tea.KeyRunes:
		keys := make([]interactive.Key, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			if msg.Alt && len(msg.Runes) == 1 && r == 'c' {
				keys = append(keys, interactive.Key{Kind: interactive.KeyAltC})
				continue
			}
			if msg.Alt && len(msg.Runes) == 1 && r == 'v' {
				keys = append(keys, interactive.Key{Kind: interactive.KeyAltV})
				continue
			}
			keys = append(keys, interactive.Key{Kind: interactive.KeyPrintable, Char: r})
		}
		return keys
	}

	if ctrl, ok := ctrlLetterFor(msg.Type); ok {
		return []interactive.Key{{Kind: interactive.KeyCtrlLetter, Ctrl: ctrl}}
	}
	if f, ok := functionKeyFor(msg.Type); ok {
		return []interactive.Key{{Kind: interactive.KeyFunctionKey, Function: f}}
	}
	return nil
}

// ctrlLetterFor maps Bubble Tea's per-letter Ctrl key types to the plain
// letter the Controller's translation table expects.
func ctrlLetterFor(t tea.KeyType) (rune, bool) {
	switch t {
	case tea.KeyCtrlA:
		return 'a', true
	case tea.KeyCtrlB:
		return 'b', true
	case tea.KeyCtrlD:
		return 'd', true
	case tea.KeyCtrlE:
		return 'e', true
	case tea.KeyCtrlF:
		return 'f', true
	case tea.KeyCtrlG:
		return 'g', true
	case tea.KeyCtrlK:
		return 'k', true
	case tea.KeyCtrlL:
		return 'l', true
	case tea.KeyCtrlN:
		return 'n', true
	case tea.KeyCtrlO:
		return 'o', true
	case tea.KeyCtrlP:
		return 'p', true
	case tea.KeyCtrlR:
		return 'r', true
	case tea.KeyCtrlT:
		return 't', true
	case tea.KeyCtrlU:
		return 'u', true
	case tea.KeyCtrlW:
		return 'w', true
	case tea.KeyCtrlX:
		return 'x', true
	case tea.KeyCtrlY:
		return 'y', true
	case tea.KeyCtrlC:
		return 'c', true
	}
	return 0, false
}

func functionKeyFor(t tea.KeyType) (int, bool) {
	switch t {
	case tea.KeyF1:
		return 1, true
	case tea.KeyF2:
		return 2, true
	case tea.KeyF3:
		return 3, true
	case tea.KeyF4:
		return 4, true
	case tea.KeyF5:
		return 5, true
	case tea.KeyF6:
		return 6, true
	case tea.KeyF7:
		return 7, true
	case tea.KeyF8:
		return 8, true
	case tea.KeyF9:
		return 9, true
	case tea.KeyF10:
		return 10, true
	case tea.KeyF11:
		return 11, true
	case tea.KeyF12:
		return 12, true
	}
	return 0, false
}

// enterModifiersFor reports the CSI-u modifier bits for a tea.KeyMsg; Bubble
// Tea surfaces Shift only via distinct key types (e.g. KeyShiftTab) rather
// than a modifier bit on KeyEnter, so a "modified Enter" is only ever Alt
// here (terminals rarely report Shift+Enter distinctly either).
func enterModifiersFor(msg tea.KeyMsg) interactive.EnterModifiers {
	return interactive.EnterModifiers{Alt: msg.Alt}
}
