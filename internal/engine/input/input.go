// Package input turns SDL2 events into per-frame control state.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType classifies a processed event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventWheel
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	// X and Y are the cursor position for mouse motion and button events.
	X, Y int
	// DX and DY are relative motion for EventMouseMove and scroll for EventWheel.
	DX, DY int
	Button uint8
}

// State is the control state accumulated from one frame of events.
type State struct {
	held    map[sdl.Scancode]bool
	pressed map[sdl.Scancode]bool
	buttons map[uint8]bool
	clicked map[uint8]bool

	mouseX, mouseY   int
	mouseDX, mouseDY int
	wheel            int
	quit             bool
	resized          bool
	width, height    int
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		held:    make(map[sdl.Scancode]bool),
		pressed: make(map[sdl.Scancode]bool),
		buttons: make(map[uint8]bool),
		clicked: make(map[uint8]bool),
	}
}

// Apply starts a new frame and folds events into the state. Held keys and
// buttons carry over between frames; everything else resets.
func (s *State) Apply(events []Event) {
	clear(s.pressed)
	clear(s.clicked)
	s.mouseDX, s.mouseDY, s.wheel = 0, 0, 0
	s.resized = false

	for _, e := range events {
		switch e.Type {
		case EventQuit:
			s.quit = true
		case EventWindowResize:
			s.resized = true
			s.width, s.height = e.Width, e.Height
		case EventKeyDown:
			if !s.held[e.Key] {
				s.pressed[e.Key] = true
			}
			s.held[e.Key] = true
		case EventKeyUp:
			delete(s.held, e.Key)
		case EventMouseMove:
			s.mouseX, s.mouseY = e.X, e.Y
			s.mouseDX += e.DX
			s.mouseDY += e.DY
		case EventMouseDown:
			s.mouseX, s.mouseY = e.X, e.Y
			s.buttons[e.Button] = true
			s.clicked[e.Button] = true
		case EventMouseUp:
			s.mouseX, s.mouseY = e.X, e.Y
			delete(s.buttons, e.Button)
		case EventWheel:
			s.wheel += e.DY
		}
	}
}

// Quit reports whether a quit was requested.
func (s *State) Quit() bool { return s.quit }

// Resized returns the new window size if it changed this frame.
func (s *State) Resized() (width, height int, ok bool) {
	return s.width, s.height, s.resized
}

// Held reports whether a key is down.
func (s *State) Held(key sdl.Scancode) bool { return s.held[key] }

// Pressed reports whether a key went down this frame. Key repeats do not count.
func (s *State) Pressed(key sdl.Scancode) bool { return s.pressed[key] }

// Button reports whether a mouse button is down.
func (s *State) Button(button uint8) bool { return s.buttons[button] }

// Clicked reports whether a mouse button went down this frame.
func (s *State) Clicked(button uint8) bool { return s.clicked[button] }

// MousePosition returns the last known cursor position in window coordinates.
func (s *State) MousePosition() (int, int) { return s.mouseX, s.mouseY }

// MouseDelta returns the relative mouse motion of this frame.
func (s *State) MouseDelta() (int, int) { return s.mouseDX, s.mouseDY }

// Wheel returns the scroll amount of this frame.
func (s *State) Wheel() int { return s.wheel }

// Movement returns WASD plus space/ctrl as forward, right and up axes in [-1, 1].
func (s *State) Movement() (forward, right, up float32) {
	axis := func(pos, neg sdl.Scancode) float32 {
		var v float32
		if s.held[pos] {
			v++
		}
		if s.held[neg] {
			v--
		}
		return v
	}
	return axis(sdl.SCANCODE_W, sdl.SCANCODE_S),
		axis(sdl.SCANCODE_D, sdl.SCANCODE_A),
		axis(sdl.SCANCODE_SPACE, sdl.SCANCODE_LCTRL)
}

// Input polls SDL and keeps the resulting State.
type Input struct {
	events []Event
	state  *State
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
		state:  NewState(),
	}
}

// Update polls SDL events and applies them. Returns true if the app should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			if e.Repeat != 0 {
				continue
			}
			t := EventKeyUp
			if e.Type == sdl.KEYDOWN {
				t = EventKeyDown
			}
			i.events = append(i.events, Event{Type: t, Key: e.Keysym.Scancode})

		case *sdl.MouseMotionEvent:
			i.events = append(i.events, Event{
				Type: EventMouseMove,
				X:    int(e.X),
				Y:    int(e.Y),
				DX:   int(e.XRel),
				DY:   int(e.YRel),
			})

		case *sdl.MouseButtonEvent:
			t := EventMouseUp
			if e.Type == sdl.MOUSEBUTTONDOWN {
				t = EventMouseDown
			}
			i.events = append(i.events, Event{Type: t, Button: e.Button, X: int(e.X), Y: int(e.Y)})

		case *sdl.MouseWheelEvent:
			i.events = append(i.events, Event{Type: EventWheel, DX: int(e.X), DY: int(e.Y)})
		}
	}

	i.state.Apply(i.events)
	return i.state.Quit()
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event { return i.events }

// State returns the control state of the last Update.
func (i *Input) State() *State { return i.state }
