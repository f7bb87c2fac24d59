// Package target checks that the application under test is reachable before a
// browser is started.
package target

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// maxBodyBytes caps how much of the index page is parsed.
const maxBodyBytes = 2 << 20

// DefaultTimeout bounds the preflight request.
const DefaultTimeout = 10 * time.Second

// Info is what the preflight learned about the target.
type Info struct {
	StatusCode int
	Title      string
	// HasRoot reports whether the page has the SPA mount node (#root).
	HasRoot bool
}

// Checker performs preflight requests.
type Checker struct {
	client *http.Client
	logger *zap.Logger
}

// NewChecker returns a Checker; a nil client gets one with DefaultTimeout.
func NewChecker(client *http.Client, logger *zap.Logger) *Checker {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Checker{client: client, logger: logger.Named("preflight")}
}

// Preflight fetches baseURL and parses the returned HTML. Transport errors and
// non-2xx responses are errors.
func (c *Checker) Preflight(ctx context.Context, baseURL string) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return Info{}, fmt.Errorf("build preflight request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("target %s unreachable: %w", baseURL, err)
	}
	defer resp.Body.Close()

	info := Info{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return info, fmt.Errorf("target %s returned %s", baseURL, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return info, fmt.Errorf("parse target page: %w", err)
	}
	info.Title, info.HasRoot = inspect(doc)

	c.logger.Info("Target reachable.",
		zap.String("url", baseURL),
		zap.Int("status", info.StatusCode),
		zap.String("title", info.Title),
		zap.Bool("has_root", info.HasRoot),
	)
	return info, nil
}

// inspect walks the document for the first <title> and an element with id="root".
func inspect(doc *html.Node) (title string, hasRoot bool) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == "root" {
					hasRoot = true
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return title, hasRoot
}
