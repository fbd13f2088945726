package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/capitalize-ai/chat-sync/internal/llm"
	"github.com/capitalize-ai/chat-sync/internal/model"
)

// callLog records the order of store writes and notifications.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// memStore keeps encoded documents so every Read returns a fresh copy.
type memStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	writeErr error
	readErr  error
	writes   int
	log      *callLog
}

func newMemStore(log *callLog) *memStore {
	return &memStore{docs: make(map[string][]byte), log: log}
}

func (s *memStore) Read(ctx context.Context, userID string) (*model.UserDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	data, ok := s.docs[userID]
	if !ok {
		return model.NewUserDocument(), nil
	}
	var doc model.UserDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return &doc, nil
}

func (s *memStore) Write(ctx context.Context, userID string, doc *model.UserDocument) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	doc.Normalize()
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, err
	}
	s.docs[userID] = data
	s.writes++
	if s.log != nil {
		s.log.add("write:" + userID)
	}
	return len(data), nil
}

func (s *memStore) stored(userID string) *model.UserDocument {
	doc, _ := s.Read(context.Background(), userID)
	return doc
}

type notification struct {
	userID string
	doc    *model.UserDocument
	files  *model.FileMetadata
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notification
	log   *callLog
	store *memStore
}

func (n *fakeNotifier) Notify(userID string, doc *model.UserDocument) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.log != nil {
		n.log.add("notify:" + userID)
	}
	n.sent = append(n.sent, notification{userID: userID, doc: doc.Clone()})
	return 1
}

func (n *fakeNotifier) NotifyFiles(userID string, meta *model.FileMetadata) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.log != nil {
		n.log.add("files:" + userID)
	}
	n.sent = append(n.sent, notification{userID: userID, files: meta})
	return 1
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*model.DocumentSaved
	err    error
	// hang blocks until the publish context ends.
	hang bool
}

func (p *fakePublisher) PublishDocumentSaved(ctx context.Context, evt *model.DocumentSaved) (uint64, error) {
	if p.hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	p.events = append(p.events, evt)
	return uint64(len(p.events)), nil
}

var errDiskFull = errors.New("disk full")

// fakeLLM streams a fixed list of tokens, optionally failing afterwards.
type fakeLLM struct {
	tokens []string
	err    error
	got    *llm.CompletionRequest
	ctxErr error
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	f.got = req
	var content string
	for i, tok := range f.tokens {
		content += tok
		if err := callback(tok, i); err != nil {
			return nil, err
		}
	}
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{
		Content:   content,
		Model:     req.Model,
		TokensIn:  3,
		TokensOut: len(f.tokens),
	}, nil
}

func (f *fakeLLM) Name() string         { return "anthropic" }
func (f *fakeLLM) DefaultModel() string { return "fake-model" }
