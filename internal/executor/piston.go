// Package executor runs learner code on a remote sandbox that speaks the
// Piston execute API.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mind-engage/mindengage-learn/internal/platform/apierr"
)

const DefaultURL = "https://emkc.org/api/v2/piston/execute"

// Language is a runtime the sandbox offers, pinned to one version.
type Language struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	FileName string `json:"file"`
}

var languages = map[string]Language{
	"python":     {Name: "python", Version: "3.10.0", FileName: "main.py"},
	"javascript": {Name: "javascript", Version: "18.15.0", FileName: "index.js"},
	"java":       {Name: "java", Version: "15.0.2", FileName: "Main.java"},
	"cpp":        {Name: "cpp", Version: "10.2.0", FileName: "main.cpp"},
}

func LookupLanguage(name string) (Language, bool) {
	l, ok := languages[strings.ToLower(name)]
	return l, ok
}

func Languages() []Language {
	return []Language{languages["python"], languages["javascript"], languages["java"], languages["cpp"]}
}

type file struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
	Stdin    string `json:"stdin"`
}

// Output is the sandbox reply. Run is nil when the sandbox refused the job;
// Message then says why.
type Output struct {
	Run *struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"run,omitempty"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	http *resty.Client
	url  string
}

func New(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{http: resty.New().SetTimeout(timeout), url: url}
}

// Execute runs source once with stdin. A non-2xx reply that still carries a
// JSON message is returned as Output, not as an error.
func (c *Client) Execute(ctx context.Context, lang Language, source, stdin string) (Output, error) {
	var out Output
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(executeRequest{
			Language: lang.Name,
			Version:  lang.Version,
			Files:    []file{{Name: lang.FileName, Content: source}},
			Stdin:    stdin,
		}).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		return Output{}, apierr.New(0, "transport", fmt.Errorf("execute: %w", err))
	}
	if resp.IsError() && out.Message == "" {
		return Output{}, apierr.New(resp.StatusCode(), "exec_error", fmt.Errorf("execute: %s", resp.Status()))
	}
	return out, nil
}
