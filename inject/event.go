package inject

import (
	"fmt"
	"time"
)

type (
	// KeyAction is the action of a [KeyEvent].
	KeyAction int

	// MotionAction is the action of a [MotionEvent].
	MotionAction int

	// KeyCode identifies a physical key.
	KeyCode int

	// MetaState is a bitmask of active modifier keys.
	MetaState uint32

	// Flags is a bitmask of event flags.
	Flags uint32

	// KeyEvent is a logical key event. Zero times are filled in by the
	// [Injector].
	KeyEvent struct {
		DownTime  time.Time
		EventTime time.Time
		Action    KeyAction
		Code      KeyCode
		Repeat    int
		Rune      rune
		MetaState MetaState
		Flags     Flags
	}

	// MotionEvent is a logical pointer event in screen coordinates.
	MotionEvent struct {
		DownTime  time.Time
		EventTime time.Time
		Action    MotionAction
		X         float64
		Y         float64
		Pressure  float64
		Flags     Flags
	}
)

const (
	KeyActionDown KeyAction = iota
	KeyActionUp
	KeyActionMultiple
)

const (
	MotionActionDown MotionAction = iota
	MotionActionUp
	MotionActionMove
	MotionActionCancel
)

const (
	MetaShiftOn MetaState = 1 << iota
	MetaAltOn
	MetaCtrlOn
)

// FlagFromSystem marks an event as originating from a trusted part of the
// system rather than an application.
const FlagFromSystem Flags = 0x8

func (a KeyAction) String() string {
	switch a {
	case KeyActionDown:
		return "DOWN"
	case KeyActionUp:
		return "UP"
	case KeyActionMultiple:
		return "MULTIPLE"
	default:
		return fmt.Sprintf("KeyAction(%d)", int(a))
	}
}

func (a MotionAction) String() string {
	switch a {
	case MotionActionDown:
		return "DOWN"
	case MotionActionUp:
		return "UP"
	case MotionActionMove:
		return "MOVE"
	case MotionActionCancel:
		return "CANCEL"
	default:
		return fmt.Sprintf("MotionAction(%d)", int(a))
	}
}

func (e KeyEvent) String() string {
	return fmt.Sprintf("KeyEvent{action=%s, code=%d, rune=%q, meta=%#x, flags=%#x}", e.Action, e.Code, e.Rune, e.MetaState, e.Flags)
}

func (e MotionEvent) String() string {
	return fmt.Sprintf("MotionEvent{action=%s, x=%g, y=%g, flags=%#x}", e.Action, e.X, e.Y, e.Flags)
}

// WithEventTime returns a copy of e re-timestamped to t. The down time moves
// by the same amount, preserving the gesture duration.
func (e KeyEvent) WithEventTime(t time.Time) KeyEvent {
	if !e.DownTime.IsZero() && !e.EventTime.IsZero() {
		e.DownTime = t.Add(e.DownTime.Sub(e.EventTime))
	} else {
		e.DownTime = t
	}
	e.EventTime = t
	return e
}
