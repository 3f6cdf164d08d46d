package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event each tick is emitted under.
const EventName = "frame"

// ErrNotConnected is returned when publishing on a socket that dropped.
var ErrNotConnected = errors.New("report socket is not connected")

// Publisher delivers tick payloads.
type Publisher interface {
	Publish(ctx context.Context, p Payload) error
	Close() error
}

// Nop discards every payload.
type Nop struct{}

func (Nop) Publish(context.Context, Payload) error { return nil }
func (Nop) Close() error                           { return nil }

// Options configures the socket.io publisher.
type Options struct {
	// Timeout bounds the initial connection. Zero means 10s.
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// SocketIO publishes payloads over a socket.io connection.
type SocketIO struct {
	io        *socket.Socket
	connected atomic.Bool
}

// New returns a Nop publisher when rawURL is empty and a connected socket.io
// publisher otherwise. The URL path selects the socket.io path and the
// fragment, if any, the namespace (e.g. ws://host:3000/socket.io/#/frames).
func New(ctx context.Context, rawURL string, o Options) (Publisher, error) {
	if rawURL == "" {
		return Nop{}, nil
	}
	return Dial(ctx, rawURL, o)
}

// Dial connects to a socket.io server and waits for the connection.
func Dial(ctx context.Context, rawURL string, o Options) (*SocketIO, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("report URL %q must include a scheme and host", rawURL)
	}
	namespace := "/"
	if parsedURL.Fragment != "" {
		namespace = "/" + strings.TrimPrefix(parsedURL.Fragment, "/")
	}
	timeout := o.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	logger := ctxlog.FromContext(ctx).With("url", rawURL, "namespace", namespace)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	p := &SocketIO{io: manager.Socket(namespace, opts)}

	done := make(chan error, 1)
	p.io.On(types.EventName("connect"), func(...any) {
		p.connected.Store(true)
		logger.Info("Report socket connected.", "sid", p.io.Id())
		select {
		case done <- nil:
		default:
		}
	})
	p.io.On(types.EventName("disconnect"), func(...any) {
		p.connected.Store(false)
		logger.Warn("Report socket disconnected.")
	})
	p.io.On(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case done <- err:
		default:
		}
	})

	p.io.Connect()

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-opCtx.Done():
		p.io.Disconnect()
		return nil, fmt.Errorf("timed out while waiting for initial connection to %s", rawURL)
	case err := <-done:
		if err != nil {
			p.io.Disconnect()
			return nil, fmt.Errorf("failed to connect to %s: %w", rawURL, err)
		}
	}
	return p, nil
}

// Publish emits p as a "frame" event.
func (p *SocketIO) Publish(ctx context.Context, payload Payload) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	data, err := toEventData(payload)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Emitting frame report.", "event", EventName, "frame", payload.Frame)
	p.io.Emit(EventName, data)
	return nil
}

// Close disconnects the socket.
func (p *SocketIO) Close() error {
	p.io.Disconnect()
	p.connected.Store(false)
	return nil
}

// toEventData converts the payload into the generic map form the socket.io
// encoder expects.
func toEventData(p Payload) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame report: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode frame report: %w", err)
	}
	return out, nil
}
