// Package syncclient keeps a local copy of a user's document in step with
// the server's sync stream.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

var (
	// ErrUnauthorized is returned by Run when the server rejects the
	// configured identity. Retrying cannot fix it.
	ErrUnauthorized = errors.New("unauthorized")

	errStreamIdle = errors.New("sync stream idle")
)

// Config configures an Agent.
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string

	// Token is sent as a bearer token. When empty, UserID is sent in
	// IdentityHeader instead.
	Token          string
	UserID         string
	IdentityHeader string

	HTTPClient *http.Client
	Logger     *logger.Logger

	// OnChange is called with a copy of the document after every local or
	// remote change, from Run's goroutine or from the caller of Save and
	// Mutate. It must not block.
	OnChange func(doc *model.UserDocument)

	// IdleTimeout drops a stream that has been silent this long. The server
	// pings every 30 seconds.
	IdleTimeout time.Duration

	// InitialBackoff and MaxBackoff bound the reconnect delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RequestTimeout bounds fetches and saves.
	RequestTimeout time.Duration
}

func (c *Config) setDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.IdentityHeader == "" {
		c.IdentityHeader = "X-User-Id"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 90 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// Agent mirrors one user's document. Remote updates replace the local copy
// wholesale; local changes are applied optimistically and saved in the
// background.
type Agent struct {
	cfg     Config
	log     *logger.Logger
	backoff *backoff.ExponentialBackOff

	mu           sync.RWMutex
	doc          *model.UserDocument
	loading      bool
	err          error
	reconnecting bool

	// pending holds the newest unsent document. saving is set while the
	// save loop runs; only one POST is in flight at a time.
	pending *model.UserDocument
	saving  bool
	saves   sync.WaitGroup
}

// New creates an agent. Nothing is fetched until Run is called.
func New(cfg Config) *Agent {
	cfg.setDefaults()

	// Delays run 2s, 4s, 8s, 16s and then stay at 30s.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &Agent{
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("component", "syncclient")),
		backoff: bo,
		doc:     model.NewUserDocument(),
		loading: true,
	}
}

// Document returns a copy of the current local document.
func (a *Agent) Document() *model.UserDocument {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.doc.Clone()
}

// Loading reports whether no document has been received yet.
func (a *Agent) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

// Err returns the last fetch or save error, cleared by the next success.
func (a *Agent) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Reconnecting reports whether the stream is down and a reconnect is
// pending.
func (a *Agent) Reconnecting() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.reconnecting
}

// Run fetches the document and follows the sync stream until ctx is done,
// reconnecting with exponential backoff. Every reconnect re-fetches the
// whole document, so updates missed while disconnected are never lost. Run
// waits for background saves before returning.
func (a *Agent) Run(ctx context.Context) error {
	defer a.saves.Wait()

	if err := a.refresh(ctx); errors.Is(err, ErrUnauthorized) {
		return err
	}

	for {
		err := a.follow(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}

		delay := a.backoff.NextBackOff()
		a.setReconnecting(true)
		a.log.Info("sync stream lost, reconnecting", zap.Duration("delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// follow holds one stream connection open and applies its events until it
// fails.
func (a *Agent) follow(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/api/sync/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	a.authorize(req)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	idle := time.AfterFunc(a.cfg.IdleTimeout, func() { cancel(errStreamIdle) })
	defer idle.Stop()

	err = readEvents(resp.Body, func(data []byte) error {
		idle.Reset(a.cfg.IdleTimeout)
		return a.dispatch(ctx, data)
	})
	if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
		return cause
	}
	return err
}

// streamEvent is a sync stream message. Legacy servers sent the bare
// document without a type.
type streamEvent struct {
	Type          model.EventType     `json:"type"`
	Data          json.RawMessage     `json:"data"`
	Conversations []model.Conversation `json:"conversations"`
	Folders       []model.Folder       `json:"folders"`
}

func (a *Agent) dispatch(ctx context.Context, data []byte) error {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		a.log.Warn("ignoring malformed sync event", zap.Error(err))
		return nil
	}

	switch ev.Type {
	case model.EventTypeConnected:
		a.backoff.Reset()
		a.setReconnecting(false)
		// Anything saved while this connection was being set up is only
		// visible through a fetch.
		if err := a.refresh(ctx); errors.Is(err, ErrUnauthorized) {
			return err
		}

	case model.EventTypePing:

	case model.EventTypeUpdate:
		if len(ev.Data) == 0 || string(ev.Data) == "null" {
			return nil
		}
		var doc model.UserDocument
		if err := json.Unmarshal(ev.Data, &doc); err != nil {
			a.log.Warn("ignoring malformed update", zap.Error(err))
			return nil
		}
		a.replace(&doc)

	case "":
		if ev.Conversations != nil || ev.Folders != nil {
			a.replace(&model.UserDocument{Conversations: ev.Conversations, Folders: ev.Folders})
		}

	default:
		// files and future event types carry no document.
	}
	return nil
}

// refresh replaces the local document with the server's.
func (a *Agent) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	doc, err := a.fetch(ctx)
	if err != nil {
		a.log.Warn("failed to fetch document", zap.Error(err))
		a.setErr(err)
		return err
	}
	a.replace(doc)
	return nil
}

func (a *Agent) fetch(ctx context.Context) (*model.UserDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/api/sync", nil)
	if err != nil {
		return nil, err
	}
	a.authorize(req)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var doc model.UserDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

// Save replaces the local document with doc and persists it in the
// background.
func (a *Agent) Save(doc *model.UserDocument) {
	doc = doc.Clone()
	a.replace(doc)
	a.persist(doc)
}

// Mutate applies fn to a copy of the local document. If fn succeeds the copy
// becomes the local document and is persisted in the background.
func (a *Agent) Mutate(fn func(doc *model.UserDocument) error) error {
	a.mu.Lock()
	next := a.doc.Clone()
	if err := fn(next); err != nil {
		a.mu.Unlock()
		return err
	}
	a.doc = next
	a.loading = false
	snapshot := next.Clone()
	a.mu.Unlock()

	a.changed(snapshot)
	a.persist(snapshot.Clone())
	return nil
}

// persist queues doc for the save loop. Saves are sent in order, and a
// document queued behind an in-flight save replaces any older queued one.
func (a *Agent) persist(doc *model.UserDocument) {
	a.mu.Lock()
	a.pending = doc
	start := !a.saving
	if start {
		a.saving = true
		a.saves.Add(1)
	}
	a.mu.Unlock()

	if start {
		go a.saveLoop()
	}
}

func (a *Agent) saveLoop() {
	defer a.saves.Done()

	for {
		a.mu.Lock()
		doc := a.pending
		a.pending = nil
		if doc == nil {
			a.saving = false
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
		err := a.post(ctx, doc)
		cancel()
		if err != nil {
			a.log.Error("failed to save document", zap.Error(err))
			a.setErr(err)
			continue
		}
		a.setErr(nil)
	}
}

func (a *Agent) post(ctx context.Context, doc *model.UserDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/sync", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Flush waits until every queued save has been sent.
func (a *Agent) Flush() {
	a.saves.Wait()
}

func (a *Agent) replace(doc *model.UserDocument) {
	doc.Normalize()

	a.mu.Lock()
	a.doc = doc
	a.loading = false
	a.err = nil
	snapshot := doc.Clone()
	a.mu.Unlock()

	a.changed(snapshot)
}

func (a *Agent) changed(doc *model.UserDocument) {
	if a.cfg.OnChange != nil {
		a.cfg.OnChange(doc)
	}
}

func (a *Agent) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *Agent) setReconnecting(v bool) {
	a.mu.Lock()
	a.reconnecting = v
	a.mu.Unlock()
}

func (a *Agent) authorize(req *http.Request) {
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
		return
	}
	if a.cfg.UserID != "" {
		req.Header.Set(a.cfg.IdentityHeader, a.cfg.UserID)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
