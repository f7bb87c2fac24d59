package schemas

import (
	"context"
	"strings"
)

// By selects how a Selector value is resolved against the page.
type By string

const (
	// ByQuery resolves a CSS selector with querySelector.
	ByQuery By = "query"
	// BySearch resolves through DOM.performSearch, which accepts XPath.
	BySearch By = "search"
)

// Selector locates an element in the application under test.
type Selector struct {
	Value string `json:"value"`
	By    By     `json:"by"`
}

// ParseSelector builds a Selector from a configured string. Values starting
// with "/" or "(" are XPath expressions, everything else is CSS.
func ParseSelector(raw string) Selector {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, "/") || strings.HasPrefix(v, "(") {
		return Selector{Value: v, By: BySearch}
	}
	return Selector{Value: v, By: ByQuery}
}

// IsXPath reports whether the selector is resolved as XPath.
func (s Selector) IsXPath() bool { return s.By == BySearch }

// IsZero reports whether the selector has no value.
func (s Selector) IsZero() bool { return s.Value == "" }

func (s Selector) String() string { return s.Value }

// SessionContext is a single browser tab driven by the scenario runner.
// Every element wait is bounded by the implementation's configured timeout.
type SessionContext interface {
	ID() string
	// Navigate loads url and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the element is visible.
	WaitVisible(ctx context.Context, sel Selector) error
	// WaitPresent blocks until the element exists in the DOM.
	WaitPresent(ctx context.Context, sel Selector) error
	// Click waits for the first matching element to be visible and clicks it.
	Click(ctx context.Context, sel Selector) error
	// Fill clears the input then types text into it.
	Fill(ctx context.Context, sel Selector, text string) error
	// SetFiles attaches local files to a file input.
	SetFiles(ctx context.Context, sel Selector, paths []string) error
	// Count returns the number of matching elements without waiting.
	Count(ctx context.Context, sel Selector) (int, error)
	// Evaluate runs a JavaScript expression and decodes its result into res.
	Evaluate(ctx context.Context, expression string, res interface{}) error
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
}
