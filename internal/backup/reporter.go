package backup

// Reporter receives synchronous progress signals. Implementations must return
// promptly and must not touch the data being backed up.
type Reporter interface {
	// Start announces how many steps will follow.
	Start(total int)
	// Advance marks one step as done.
	Advance()
	// Finish is called once after the last step.
	Finish()
}

// NopReporter discards all progress signals.
type NopReporter struct{}

func (NopReporter) Start(int) {}
func (NopReporter) Advance()  {}
func (NopReporter) Finish()   {}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return NopReporter{}
	}
	return r
}
