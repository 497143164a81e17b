package icms

import "time"

// SourceRun is the outcome of one adapter invocation. It is not modified
// after the adapter returns.
type SourceRun struct {
	Source     string
	URL        string
	OK         bool
	Matrix     Matrix
	Intrastate Intrastate
	Err        error
	Warnings   []Warning
	Pages      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed builds a failed run.
func Failed(source, url string, err error) SourceRun {
	return SourceRun{Source: source, URL: url, Err: err}
}

// Succeeded builds a successful run and derives the intrastate subset
// from the matrix diagonal.
func Succeeded(source, url string, m Matrix, warnings []Warning) SourceRun {
	return SourceRun{
		Source:     source,
		URL:        url,
		OK:         true,
		Matrix:     m,
		Intrastate: m.Diagonal(),
		Warnings:   warnings,
	}
}
