package inject

import (
	"fmt"
)

// Key codes produced by [USKeyCharacterMap].
const (
	KeyCodeUnknown      KeyCode = 0
	KeyCode0            KeyCode = 7
	KeyCodeA            KeyCode = 29
	KeyCodeComma        KeyCode = 55
	KeyCodePeriod       KeyCode = 56
	KeyCodeShiftLeft    KeyCode = 59
	KeyCodeTab          KeyCode = 61
	KeyCodeSpace        KeyCode = 62
	KeyCodeEnter        KeyCode = 66
	KeyCodeGrave        KeyCode = 68
	KeyCodeMinus        KeyCode = 69
	KeyCodeEquals       KeyCode = 70
	KeyCodeLeftBracket  KeyCode = 71
	KeyCodeRightBracket KeyCode = 72
	KeyCodeBackslash    KeyCode = 73
	KeyCodeSemicolon    KeyCode = 74
	KeyCodeApostrophe   KeyCode = 75
	KeyCodeSlash        KeyCode = 76
)

// KeyCharacterMap decomposes text into key events.
type KeyCharacterMap interface {
	Events(text string) ([]KeyEvent, error)
}

// USKeyCharacterMap maps printable ASCII, tab, and newline using a US
// keyboard layout. Shifted characters are wrapped in shift down/up events.
type USKeyCharacterMap struct{}

var _ KeyCharacterMap = USKeyCharacterMap{}

type keyStroke struct {
	code  KeyCode
	shift bool
}

var usKeys = func() map[rune]keyStroke {
	m := map[rune]keyStroke{
		' ':  {KeyCodeSpace, false},
		'\t': {KeyCodeTab, false},
		'\n': {KeyCodeEnter, false},
	}
	for i := range 26 {
		m['a'+rune(i)] = keyStroke{KeyCodeA + KeyCode(i), false}
		m['A'+rune(i)] = keyStroke{KeyCodeA + KeyCode(i), true}
	}
	for i := range 10 {
		m['0'+rune(i)] = keyStroke{KeyCode0 + KeyCode(i), false}
	}
	for i, r := range ")!@#$%^&*(" {
		m[r] = keyStroke{KeyCode0 + KeyCode(i), true}
	}
	for _, v := range [...]struct {
		code           KeyCode
		plain, shifted rune
	}{
		{KeyCodeComma, ',', '<'},
		{KeyCodePeriod, '.', '>'},
		{KeyCodeGrave, '`', '~'},
		{KeyCodeMinus, '-', '_'},
		{KeyCodeEquals, '=', '+'},
		{KeyCodeLeftBracket, '[', '{'},
		{KeyCodeRightBracket, ']', '}'},
		{KeyCodeBackslash, '\\', '|'},
		{KeyCodeSemicolon, ';', ':'},
		{KeyCodeApostrophe, '\'', '"'},
		{KeyCodeSlash, '/', '?'},
	} {
		m[v.plain] = keyStroke{v.code, false}
		m[v.shifted] = keyStroke{v.code, true}
	}
	return m
}()

// Events returns the key events typing text. Timestamps are left zero.
func (USKeyCharacterMap) Events(text string) ([]KeyEvent, error) {
	events := make([]KeyEvent, 0, len(text)*2)
	for _, r := range text {
		stroke, ok := usKeys[r]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnmappableRune, r)
		}
		if !stroke.shift {
			events = append(events,
				KeyEvent{Action: KeyActionDown, Code: stroke.code, Rune: r},
				KeyEvent{Action: KeyActionUp, Code: stroke.code, Rune: r},
			)
			continue
		}
		events = append(events,
			KeyEvent{Action: KeyActionDown, Code: KeyCodeShiftLeft, MetaState: MetaShiftOn},
			KeyEvent{Action: KeyActionDown, Code: stroke.code, Rune: r, MetaState: MetaShiftOn},
			KeyEvent{Action: KeyActionUp, Code: stroke.code, Rune: r, MetaState: MetaShiftOn},
			KeyEvent{Action: KeyActionUp, Code: KeyCodeShiftLeft},
		)
	}
	return events, nil
}
