package session

import (
	"sync"
	"unicode"
)

// Action is a keyboard-triggerable session control.
type Action int

const (
	ActionToggleMute Action = iota
	ActionToggleCamera
	ActionTogglePresent
	ActionToggleFullscreen
	ActionToggleChat
	ActionToggleInfo
	ActionTogglePeople
	ActionReact
)

// HostKeymap is the shortcut surface for session hosts.
func HostKeymap() map[rune]Action {
	return map[rune]Action{
		'm': ActionToggleMute,
		'v': ActionToggleCamera,
		'p': ActionTogglePresent,
		'f': ActionToggleFullscreen,
		'c': ActionToggleChat,
		'i': ActionToggleInfo,
		'g': ActionTogglePeople,
	}
}

// ViewerKeymap is the shortcut surface for webinar attendees.
func ViewerKeymap() map[rune]Action {
	return map[rune]Action{
		'f': ActionToggleFullscreen,
		'c': ActionToggleChat,
		'i': ActionToggleInfo,
		'r': ActionReact,
	}
}

// Shortcuts maps single keys to bound actions. Keys pressed while the
// focus sits in a text input are ignored, so typing "m" into the chat box
// never mutes the mic.
type Shortcuts struct {
	mu       sync.Mutex
	bindings map[rune]Action
	handlers map[Action]func()
}

func NewShortcuts(keymap map[rune]Action) *Shortcuts {
	return &Shortcuts{
		bindings: keymap,
		handlers: make(map[Action]func()),
	}
}

// Bind attaches the handler invoked when the action's key fires.
func (s *Shortcuts) Bind(a Action, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[a] = fn
}

// HandleKey routes one key press. typing reports whether a text input has
// focus. Returns true when a bound handler ran.
func (s *Shortcuts) HandleKey(key rune, typing bool) bool {
	if typing {
		return false
	}
	s.mu.Lock()
	action, ok := s.bindings[unicode.ToLower(key)]
	var fn func()
	if ok {
		fn = s.handlers[action]
	}
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
