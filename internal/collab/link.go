package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

const (
	eventBuffer     = 1024
	snapshotTimeout = 15 * time.Second
)

var ErrSnapshotStatus = errors.New("unexpected snapshot status")

type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventMessage
	EventClose
	EventSnapshot
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventSnapshot:
		return "snapshot"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one thing that happened on the link. Message is set for
// EventMessage; RoomID and Elements for EventSnapshot; Err may accompany
// EventClose.
type Event struct {
	Kind       EventKind
	Generation uint64
	Message    *Message
	RoomID     string
	Elements   []board.Element
	Err        error
}

// Link owns the connection lifecycle to the relay. Every connection attempt
// gets a new generation; events from an older generation are never
// delivered, so a slow close or snapshot from a replaced connection cannot
// touch the current session.
type Link struct {
	wsURL      string
	apiBase    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	gen    uint64
	token  string
	client *Client
	cancel context.CancelFunc

	events chan Event
}

type LinkOption func(*Link)

func WithHTTPClient(c *http.Client) LinkOption {
	return func(l *Link) { l.httpClient = c }
}

func WithLogger(logger *slog.Logger) LinkOption {
	return func(l *Link) { l.logger = logger }
}

func NewLink(wsURL, apiBase string, opts ...LinkOption) *Link {
	l := &Link{
		wsURL:      wsURL,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: snapshotTimeout},
		logger:     slog.Default(),
		events:     make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Events is the single stream a session consumes.
func (l *Link) Events() <-chan Event {
	return l.events
}

// Connect drops any current connection (emitting its close) and starts a
// new one in the background. EventOpen or EventClose follows.
func (l *Link) Connect(ctx context.Context, token string) {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	l.dropLocked(nil)
	l.gen++
	gen := l.gen
	l.token = token
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(ctx, gen, token)
}

// Close drops the current connection. Nothing from it is delivered after
// the close event.
func (l *Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropLocked(nil)
	l.gen++
}

// Send is fire-and-forget; with no open connection it does nothing.
func (l *Link) Send(msg *Message) {
	l.mu.Lock()
	c := l.client
	l.mu.Unlock()
	if c == nil {
		return
	}
	c.Send(msg)
}

// RequestSnapshot fetches the committed elements of roomID in the
// background and delivers them as EventSnapshot.
func (l *Link) RequestSnapshot(roomID string) {
	l.mu.Lock()
	gen, token := l.gen, l.token
	l.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		elems, err := l.FetchSnapshot(ctx, roomID, token)
		if err != nil {
			l.logger.Warn("fetch board snapshot", "error", err, "room", roomID)
			return
		}
		l.emit(Event{Kind: EventSnapshot, Generation: gen, RoomID: roomID, Elements: elems})
	}()
}

// FetchSnapshot performs GET {apiBase}/rooms/{roomID}/board-elements.
// Entries that fail to decode are skipped.
func (l *Link) FetchSnapshot(ctx context.Context, roomID, token string) ([]board.Element, error) {
	endpoint := l.apiBase + "/rooms/" + url.PathEscape(roomID) + "/board-elements"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotStatus, resp.StatusCode)
	}

	var body SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	elems := make([]board.Element, 0, len(body.Elements))
	for _, raw := range body.Elements {
		var el board.Element
		if err := json.Unmarshal(raw, &el); err != nil {
			l.logger.Warn("skip snapshot element", "error", err, "room", roomID)
			continue
		}
		if el.ID == "" {
			continue
		}
		elems = append(elems, el)
	}
	return elems, nil
}

func (l *Link) run(ctx context.Context, gen uint64, token string) {
	client, err := Dial(ctx, l.wsURL, token, l.logger)
	if err != nil {
		l.logger.Warn("connect failed", "error", err)
		l.finish(gen, err)
		return
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		client.Close()
		return
	}
	l.client = client
	l.emitLocked(Event{Kind: EventOpen, Generation: gen})
	l.mu.Unlock()
	l.logger.Info("connected", "generation", gen)

	go client.WritePump(ctx)
	err = client.ReadPump(ctx, func(msg *Message) {
		l.emit(Event{Kind: EventMessage, Generation: gen, Message: msg})
	})
	l.finish(gen, err)
}

// finish reports the end of generation gen, unless it was already replaced.
func (l *Link) finish(gen uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.dropLocked(err)
	l.logger.Info("disconnected", "generation", gen, "error", err)
}

func (l *Link) dropLocked(err error) {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
	l.emitLocked(Event{Kind: EventClose, Generation: l.gen, Err: err})
}

func (l *Link) emit(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitLocked(ev)
}

func (l *Link) emitLocked(ev Event) {
	if ev.Generation != l.gen {
		return
	}
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("event buffer full, dropping event", "kind", ev.Kind)
	}
}
