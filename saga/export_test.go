package saga

// ListenerCount exposes the number of listeners registered on e for ev.
func ListenerCount(e *Execution, ev Event) int {
	return e.listeners.count(ev)
}
