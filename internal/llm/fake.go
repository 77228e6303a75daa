package llm

import (
	"context"
	"errors"
)

// Fake is a scripted extractor for tests: it returns its queued results in
// order and records every prompt it was given.
type Fake struct {
	Results []*Result
	Errs    []error
	Prompts []string
	calls   int
}

// Queue appends a successful result to the script.
func (f *Fake) Queue(form map[string]any, reply string) *Fake {
	f.Results = append(f.Results, &Result{Form: form, Reply: reply})
	f.Errs = append(f.Errs, nil)
	return f
}

// QueueErr appends a failing call to the script.
func (f *Fake) QueueErr(err error) *Fake {
	f.Results = append(f.Results, nil)
	f.Errs = append(f.Errs, err)
	return f
}

func (f *Fake) Extract(_ context.Context, prompt string) (*Result, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.calls >= len(f.Results) {
		return nil, errors.New("fake llm: script exhausted")
	}
	i := f.calls
	f.calls++
	if f.Errs[i] != nil {
		return nil, f.Errs[i]
	}
	return f.Results[i], nil
}

// Calls reports how many times Extract ran.
func (f *Fake) Calls() int { return f.calls }
