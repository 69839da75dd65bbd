// Package broadcast fans a signed transaction out to a pluggable set of
// endpoints, accepting the first success (spec.md §4.6 step 3, §6
// "Broadcast: pluggable set of endpoints").
package broadcast

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// Endpoint accepts raw serialized transaction bytes.
type Endpoint interface {
	Name() string
	Submit(ctx context.Context, rawTx []byte) error
}

// Dispatcher holds a fixed set of endpoints and submits to them
// concurrently, returning as soon as one succeeds.
type Dispatcher struct {
	endpoints []Endpoint
	log       *applog.Logger
}

func NewDispatcher(endpoints ...Endpoint) *Dispatcher {
	return &Dispatcher{endpoints: endpoints, log: applog.Component("Broadcast")}
}

// Submit sends rawTx to every configured endpoint concurrently and returns
// once the first one succeeds. It fails only if every endpoint fails.
func (d *Dispatcher) Submit(ctx context.Context, rawTx []byte) error {
	if len(d.endpoints) == 0 {
		return walleterr.New(walleterr.KindInternal, "no broadcast endpoints configured")
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(d.endpoints))

	for _, ep := range d.endpoints {
		go func(ep Endpoint) {
			err := ep.Submit(ctx, rawTx)
			results <- result{name: ep.Name(), err: err}
		}(ep)
	}

	var errs []string
	for i := 0; i < len(d.endpoints); i++ {
		r := <-results
		if r.err == nil {
			d.log.Infof("broadcast accepted by %s", r.name)
			return nil
		}
		d.log.Warnf("broadcast rejected by %s: %v", r.name, r.err)
		errs = append(errs, fmt.Sprintf("%s: %v", r.name, r.err))
	}
	return walleterr.New(walleterr.KindNetwork, fmt.Sprintf("all broadcast endpoints failed: %v", errs))
}

// HTTPEndpoint POSTs the raw transaction bytes to a configured URL.
type HTTPEndpoint struct {
	name   string
	url    string
	client *http.Client
}

func NewHTTPEndpoint(name, url string) *HTTPEndpoint {
	return &HTTPEndpoint{name: name, url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (e *HTTPEndpoint) Name() string { return e.name }

func (e *HTTPEndpoint) Submit(ctx context.Context, rawTx []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(rawTx))
	if err != nil {
		return walleterr.Wrap(walleterr.KindNetwork, "build broadcast request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return walleterr.Wrap(walleterr.KindNetwork, "submit broadcast request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return walleterr.New(walleterr.KindNetwork, fmt.Sprintf("broadcast endpoint returned status %d", resp.StatusCode))
	}
	return nil
}
