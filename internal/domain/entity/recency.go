package entity

// RecencyWindow is an ordered set of recently served entry names, oldest first.
// It is not safe for concurrent use.
type RecencyWindow struct {
	order []string
	seen  map[string]struct{}
}

// NewRecencyWindow creates an empty window.
func NewRecencyWindow() *RecencyWindow {
	return &RecencyWindow{seen: make(map[string]struct{})}
}

// Len returns the number of names in the window.
func (w *RecencyWindow) Len() int {
	return len(w.order)
}

// Contains reports whether name was served recently.
func (w *RecencyWindow) Contains(name string) bool {
	_, ok := w.seen[name]
	return ok
}

// Add records name as the most recently served entry.
func (w *RecencyWindow) Add(name string) {
	if w.Contains(name) {
		return
	}
	w.order = append(w.order, name)
	w.seen[name] = struct{}{}
}

// Halve drops the oldest half of the window.
func (w *RecencyWindow) Halve() {
	drop := len(w.order) / 2
	for _, name := range w.order[:drop] {
		delete(w.seen, name)
	}
	w.order = append([]string(nil), w.order[drop:]...)
}

// Retain drops every name for which keep returns false, preserving order.
func (w *RecencyWindow) Retain(keep func(name string) bool) {
	kept := w.order[:0]
	for _, name := range w.order {
		if keep(name) {
			kept = append(kept, name)
			continue
		}
		delete(w.seen, name)
	}
	w.order = kept
}

// Names returns a copy of the window contents, oldest first.
func (w *RecencyWindow) Names() []string {
	return append([]string(nil), w.order...)
}
