package core

import "sync"

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions. Values follow the usual virtual-key layout so
// platform layers can map native codes directly.
type KeyCode uint16

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_ENTER     KeyCode = 0x0D
	KEY_TAB       KeyCode = 0x09
	KEY_SHIFT     KeyCode = 0x10
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_A         KeyCode = 0x41
	KEY_D         KeyCode = 0x44
	KEY_E         KeyCode = 0x45
	KEY_Q         KeyCode = 0x51
	KEY_S         KeyCode = 0x53
	KEY_W         KeyCode = 0x57
	KEYS_MAX_KEYS KeyCode = 0x100
)

type keyboardState struct {
	keys [KEYS_MAX_KEYS]bool
}

type mouseState struct {
	x, y    int16
	buttons [BUTTON_MAX_BUTTONS]bool
}

type inputState struct {
	keyboardCurrent  keyboardState
	keyboardPrevious keyboardState
	mouseCurrent     mouseState
	mousePrevious    mouseState
}

var onceInput sync.Once
var inState *inputState

func InputInitialize() error {
	onceInput.Do(func() {
		inState = &inputState{}
	})
	return nil
}

// InputUpdate copies current state to previous state. Call once per frame,
// after all input for the frame has been recorded.
func InputUpdate(deltaTime float64) {
	if inState == nil {
		return
	}
	inState.keyboardPrevious = inState.keyboardCurrent
	inState.mousePrevious = inState.mouseCurrent
}

func InputProcessKey(key KeyCode, pressed bool) {
	if inState == nil || key >= KEYS_MAX_KEYS {
		return
	}
	if inState.keyboardCurrent.keys[key] != pressed {
		inState.keyboardCurrent.keys[key] = pressed

		context := EventContext{}
		context.Data.U16[0] = uint16(key)
		code := EVENT_CODE_KEY_RELEASED
		if pressed {
			code = EVENT_CODE_KEY_PRESSED
		}
		EventFire(code, nil, context)
	}
}

func InputProcessButton(button Button, pressed bool) {
	if inState == nil || button >= BUTTON_MAX_BUTTONS {
		return
	}
	inState.mouseCurrent.buttons[button] = pressed
}

func InputProcessMouseMove(x, y int16) {
	if inState == nil {
		return
	}
	inState.mouseCurrent.x = x
	inState.mouseCurrent.y = y
}

func InputIsKeyDown(key KeyCode) bool {
	if inState == nil || key >= KEYS_MAX_KEYS {
		return false
	}
	return inState.keyboardCurrent.keys[key]
}

func InputWasKeyDown(key KeyCode) bool {
	if inState == nil || key >= KEYS_MAX_KEYS {
		return false
	}
	return inState.keyboardPrevious.keys[key]
}

func InputGetMousePosition() (int16, int16) {
	if inState == nil {
		return 0, 0
	}
	return inState.mouseCurrent.x, inState.mouseCurrent.y
}
