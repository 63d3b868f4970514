// Package interactive implements Grove's Interactive Controller: the
// three-state machine governing keystroke forwarding into a session's pane
// (spec §4.5), grounded on
// original_source/src/application/interactive.rs.
package interactive

import "fmt"

// Key is the translated form of a captured keypress, independent of the
// terminal library that read it.
type Key struct {
	Kind ModifiedEnter
	// Ctrl holds the letter for a Ctrl+<letter> chord (lowercase).
	Ctrl rune
	// Function holds the F-key index for a function key (1..12).
	Function int
	// Char holds the literal rune for a printable character.
	Char rune
}

// ModifiedEnter distinguishes the key kinds the translation table names
// explicitly (spec §4.5 Key forwarding).
type ModifiedEnter int

const (
	KeyEnter ModifiedEnter = iota
	KeyModifiedEnter
	KeyTab
	KeyBackTab
	KeyBackspace
	KeyDelete
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyEscape
	KeyCtrlBackslash
	KeyCtrlLetter
	KeyFunctionKey
	KeyPrintable
	KeyAltC
	KeyAltV
)

// EnterModifiers carries the modifier bits for a modified Enter (spec's
// CSI-u encoding: shift=1, alt=2, ctrl=4, base value 1).
type EnterModifiers struct {
	Shift, Alt, Ctrl bool
}

// ActionKind is the result of translating a Key.
type ActionKind int

const (
	ActionSendNamed ActionKind = iota
	ActionSendLiteral
	ActionExitInteractive
	ActionCopySelection
	ActionPasteClipboard
	ActionNoop
)

// Action is what the Controller does in response to one keypress.
type Action struct {
	Kind    ActionKind
	Payload string
}

// enterModifierValue encodes the CSI-u modifier byte for a modified Enter,
// which, like Shift+Tab, is sent as literal CSI bytes rather than by name.
func enterModifierValue(m EnterModifiers) int {
	value := 1
	if m.Shift {
		value++
	}
	if m.Alt {
		value += 2
	}
	if m.Ctrl {
		value += 4
	}
	return value
}

// translateKey implements the non-exit portion of the key forwarding
// table (spec §4.5 Key forwarding). Exit keys (Escape, Ctrl-\\) and
// copy/paste chords are handled by the Controller before reaching here.
func translateKey(k Key, enterMods EnterModifiers) Action {
	switch k.Kind {
	case KeyEnter:
		return Action{Kind: ActionSendNamed, Payload: "Enter"}
	case KeyModifiedEnter:
		return Action{Kind: ActionSendLiteral, Payload: fmt.Sprintf("\x1b[13;%du", enterModifierValue(enterMods))}
	case KeyTab:
		return Action{Kind: ActionSendNamed, Payload: "Tab"}
	case KeyBackTab:
		return Action{Kind: ActionSendLiteral, Payload: "\x1b[Z"}
	case KeyBackspace:
		return Action{Kind: ActionSendNamed, Payload: "BSpace"}
	case KeyDelete:
		return Action{Kind: ActionSendNamed, Payload: "DC"}
	case KeyUp:
		return Action{Kind: ActionSendNamed, Payload: "Up"}
	case KeyDown:
		return Action{Kind: ActionSendNamed, Payload: "Down"}
	case KeyLeft:
		return Action{Kind: ActionSendNamed, Payload: "Left"}
	case KeyRight:
		return Action{Kind: ActionSendNamed, Payload: "Right"}
	case KeyHome:
		return Action{Kind: ActionSendNamed, Payload: "Home"}
	case KeyEnd:
		return Action{Kind: ActionSendNamed, Payload: "End"}
	case KeyPageUp:
		return Action{Kind: ActionSendNamed, Payload: "PPage"}
	case KeyPageDown:
		return Action{Kind: ActionSendNamed, Payload: "NPage"}
	case KeyCtrlLetter:
		if k.Ctrl >= 'a' && k.Ctrl <= 'z' {
			return Action{Kind: ActionSendNamed, Payload: fmt.Sprintf("C-%c", k.Ctrl)}
		}
		return Action{Kind: ActionNoop}
	case KeyFunctionKey:
		if k.Function >= 1 && k.Function <= 12 {
			return Action{Kind: ActionSendNamed, Payload: fmt.Sprintf("F%d", k.Function)}
		}
		return Action{Kind: ActionNoop}
	case KeyPrintable:
		return Action{Kind: ActionSendLiteral, Payload: string(k.Char)}
	default:
		return Action{Kind: ActionNoop}
	}
}
