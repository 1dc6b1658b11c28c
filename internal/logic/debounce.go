package logic

// Debouncer suppresses repeated and idle samples so that only genuine
// changes of the button lines become events.
// The zero value is ready to use and starts from the all-idle sample.
type Debouncer struct {
	last Sample
}

// Prime sets the reference sample without emitting anything.
// Used at startup so a button held during boot is not reported.
func (d *Debouncer) Prime(s Sample) {
	d.last = s
}

// Process takes a new sample and reports whether it is an event.
// The reference is the previous poll, not the previous event: a press,
// release and press again yields two events, while a held button yields one.
func (d *Debouncer) Process(s Sample) bool {
	changed := s != d.last
	d.last = s
	return changed && !s.Idle()
}

// Last returns the most recently processed sample.
func (d *Debouncer) Last() Sample {
	return d.last
}
