package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ScriptLoader checks once that the checkout script is reachable and then reports
// it as loaded for every checkout in the process.
type ScriptLoader struct {
	url    string
	client *http.Client
	loaded atomic.Bool
	group  singleflight.Group
}

func NewScriptLoader(url string, client *http.Client) *ScriptLoader {
	if client == nil {
		client = &http.Client{Timeout: defaultCallTimeout}
	}
	return &ScriptLoader{url: url, client: client}
}

func (l *ScriptLoader) URL() string { return l.url }

func (l *ScriptLoader) Loaded() bool { return l.loaded.Load() }

func (l *ScriptLoader) Load(ctx context.Context) error {
	if l.Loaded() {
		return nil
	}
	ch := l.group.DoChan("load", func() (interface{}, error) {
		return nil, l.fetch(context.WithoutCancel(ctx))
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *ScriptLoader) fetch(ctx context.Context) error {
	if l.url == "" {
		return fmt.Errorf("checkout script url is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create script request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch checkout script: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("checkout script returned %s", resp.Status)
	}
	l.loaded.Store(true)
	return nil
}
