package search

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultDelay = 400 * time.Millisecond
	MinLength    = 2
)

// Input turns raw keystrokes into search dispatches. Debounced values of at
// least MinLength characters start a search; shorter ones clear it.
type Input struct {
	debouncer *Debouncer[string]
	onSearch  func(string)
	onClear   func()

	mu     sync.Mutex
	active string
}

func NewInput(delay time.Duration, onSearch func(query string), onClear func()) *Input {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if onClear == nil {
		onClear = func() {}
	}
	in := &Input{onSearch: onSearch, onClear: onClear}
	in.debouncer = NewDebouncer(delay, func(v string) { in.dispatch(v, false) })
	return in
}

// Debouncer exposes the underlying debouncer, mainly to swap its timer in
// tests.
func (in *Input) Debouncer() *Debouncer[string] { return in.debouncer }

// Change records a keystroke.
func (in *Input) Change(raw string) {
	in.debouncer.Push(raw)
}

// Submit dispatches raw immediately, skipping the delay but not the length
// gate.
func (in *Input) Submit(raw string) {
	in.debouncer.Stop()
	in.dispatch(raw, true)
}

// Clear drops pending input and the active search.
func (in *Input) Clear() {
	in.debouncer.Stop()
	in.dispatch("", false)
}

func (in *Input) Active() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Debouncing reports whether a keystroke is waiting for the delay.
func (in *Input) Debouncing() bool {
	return in.debouncer.Pending()
}

func (in *Input) dispatch(raw string, force bool) {
	q := strings.TrimSpace(raw)

	in.mu.Lock()
	if utf8.RuneCountInString(q) < MinLength {
		wasActive := in.active != ""
		in.active = ""
		in.mu.Unlock()
		if wasActive {
			in.onClear()
		}
		return
	}
	if q == in.active && !force {
		in.mu.Unlock()
		return
	}
	in.active = q
	in.mu.Unlock()
	in.onSearch(q)
}
