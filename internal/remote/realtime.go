// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const RealtimeModule = "realtime"

const maxEventSize = 1 << 20

type realtime struct{}

// Realtime installs the change subscription capability.
func Realtime() Module { return realtime{} }

func (realtime) Name() string { return RealtimeModule }

func (realtime) Install(c *Client) error {
	c.realtimeEnabled = true
	// streams outlive any per-request timeout
	c.stream = &http.Client{Transport: c.transport}
	return nil
}

// ChangeType is the kind of row change.
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Change is one row change on a subscribed table.
type Change struct {
	Type      ChangeType     `json:"type"`
	Table     string         `json:"table"`
	Record    map[string]any `json:"record,omitempty"`
	OldRecord map[string]any `json:"old_record,omitempty"`
}

// Channel opens change subscriptions.
type Channel struct {
	client *Client
}

// Realtime returns the change subscription capability, or ModuleNotInstalled.
func (c *Client) Realtime() (*Channel, error) {
	if !c.realtimeEnabled {
		return nil, NewModuleNotInstalledError(RealtimeModule)
	}
	return &Channel{client: c}, nil
}

// Subscription delivers the changes of one table until it is closed, its context ends or the
// server ends the stream. Changes() is closed in every case.
type Subscription struct {
	changes chan Change
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// Subscribe opens the change stream of table. The stream is a sequence of server-sent events
// whose data is a JSON encoded Change.
func (ch *Channel) Subscribe(ctx context.Context, table string) (*Subscription, error) {
	if table == "" {
		return nil, NewConfigurationError("subscription has no table")
	}

	endpoint := ch.client.endpoint("/realtime/v1/stream", url.Values{"table": []string{table}})
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, NewRequestError(err, endpoint, 0)
	}
	ch.client.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := ch.client.stream.Do(req)
	if err != nil {
		cancel()
		return nil, NewRequestError(err, endpoint, 0)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		cancel()
		return nil, NewRequestError(nil, endpoint, resp.StatusCode)
	}

	s := &Subscription{
		changes: make(chan Change),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.read(streamCtx, ctx, resp.Body, endpoint)

	return s, nil
}

// Changes returns the channel changes are delivered on.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

// Err returns the error that ended the stream, if any. It is nil after Close or a clean end of
// stream.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for the reader to exit.
func (s *Subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return nil
}

func (s *Subscription) read(streamCtx, parent context.Context, body io.ReadCloser, endpoint string) {
	defer close(s.done)
	defer close(s.changes)
	defer body.Close()
	defer s.cancel()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			payload := strings.Join(data, "\n")
			data = data[:0]

			var change Change
			if err := json.Unmarshal([]byte(payload), &change); err != nil {
				s.fail(NewDecodeError(err, endpoint))
				return
			}

			select {
			case s.changes <- change:
			case <-streamCtx.Done():
				s.finish(parent)
				return
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && streamCtx.Err() == nil {
		s.fail(NewRequestError(err, endpoint, 0))
		return
	}

	s.finish(parent)
}

// finish records why a stream ended without a read error: the parent context ending is reported,
// a Close or a server-side end of stream is not.
func (s *Subscription) finish(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && parent.Err() != nil {
		s.err = parent.Err()
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.err = err
	}
}
