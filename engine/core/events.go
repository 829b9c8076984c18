package core

import "sync"

type EventContext struct {
	// 128 bytes of POD payload plus a few strings, mirroring the wire
	// layout events had in the original engine family.
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64

		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32

		U16 [8]uint16
		U8  [16]uint8

		C [4]string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * u16 key_code = data.data.u16[0];
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u16 width = data.data.u16[0];
	 * u16 height = data.data.u16[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A loaded resource was evicted behind the renderer's back.
	/* Context usage:
	 * string key = data.data.c[0];
	 */
	EVENT_CODE_RESOURCE_EVICTED SystemEventCode = 0x10

	// A watched asset file changed on disk.
	/* Context usage:
	 * string path = data.data.c[0];
	 */
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x11

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventCodeEntry struct {
	events []*registeredEvent
}

type eventSystemState struct {
	// Lookup table for event codes.
	registered [MAX_MESSAGE_CODES]eventCodeEntry
	mu         sync.Mutex
}

var onceEvent sync.Once
var isInitialized bool = false
var eventState *eventSystemState = nil

func EventInitialize() bool {
	if isInitialized {
		return false
	}
	onceEvent.Do(func() {
		eventState = &eventSystemState{}
	})
	isInitialized = true
	return true
}

func EventShutdown() error {
	if eventState == nil {
		return nil
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	for i := 0; i < MAX_MESSAGE_CODES; i++ {
		eventState.registered[i].events = nil
	}
	return nil
}

// EventRegister subscribes the listener/callback pair to the given code.
// Duplicate listener registrations for the same code are rejected.
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	for _, e := range eventState.registered[code].events {
		if e.listener == listener {
			LogWarn("event listener already registered for code %d", code)
			return false
		}
	}
	eventState.registered[code].events = append(eventState.registered[code].events, &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// EventUnregister removes a previously registered listener for the code.
func EventUnregister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()
	events := eventState.registered[code].events
	for i, e := range events {
		if e.listener == listener {
			eventState.registered[code].events = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire notifies listeners of the given code in registration order. If a
// handler returns true the event is considered handled and propagation stops.
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	if !isInitialized {
		return false
	}
	eventState.mu.Lock()
	events := make([]*registeredEvent, len(eventState.registered[code].events))
	copy(events, eventState.registered[code].events)
	eventState.mu.Unlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}
