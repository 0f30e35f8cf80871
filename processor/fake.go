package processor

import "context"

// Fake is a Processor for tests: it records what it was asked to do and
// returns a canned report. The zero value reports success.
type Fake struct {
	// Report is returned from Run when Err is nil.
	Report Report

	// Err, when set, is returned instead of a report.
	Err error

	// Hook, when set, runs inside Run with the working directory, so a
	// test can mutate the document the way a real tool would.
	Hook func(dir string, opts map[string]string) error

	// Calls counts invocations; LastOpts keeps the last option set.
	Calls    int
	LastOpts map[string]string
}

var _ Processor = (*Fake)(nil)

// Run returns the canned outcome.
func (f *Fake) Run(_ context.Context, dir string, opts map[string]string, _ int) (*Report, error) {
	f.Calls++
	f.LastOpts = opts
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Hook != nil {
		if err := f.Hook(dir, opts); err != nil {
			return nil, err
		}
	}
	report := f.Report
	return &report, nil
}
