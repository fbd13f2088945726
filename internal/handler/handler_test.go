package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-sync/internal/llm"
	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/realtime"
	"github.com/capitalize-ai/chat-sync/internal/service"
	"github.com/capitalize-ai/chat-sync/internal/store"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

const identityHeader = "X-User-Id"

type testServer struct {
	*httptest.Server
	registry *realtime.Registry
	stream   *StreamHandler
}

type fakeLLM struct {
	tokens []string
	delay  time.Duration
}

func (f *fakeLLM) Name() string         { return string(llm.ProviderAnthropic) }
func (f *fakeLLM) DefaultModel() string { return "fake-model" }

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	var sb strings.Builder
	for i, tok := range f.tokens {
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		sb.WriteString(tok)
		if err := callback(tok, i); err != nil {
			return nil, err
		}
	}
	return &llm.CompletionResponse{Content: sb.String(), Model: req.Model, TokensOut: len(f.tokens)}, nil
}

func newTestServer(t *testing.T, keepAlive time.Duration, clients ...llm.Client) *testServer {
	t.Helper()
	return newTestServerWithWriteTimeout(t, 0, keepAlive, clients...)
}

func newTestServerWithWriteTimeout(t *testing.T, writeTimeout, keepAlive time.Duration, clients ...llm.Client) *testServer {
	t.Helper()

	log := logger.NewNop()
	dir := t.TempDir()
	backend, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	files, err := store.NewFileStore(backend, dir)
	require.NoError(t, err)

	registry := realtime.NewRegistry(log)
	documents := store.NewDocumentStore(backend)
	syncSvc := service.NewSyncService(documents, registry, nil, log)
	fileSvc := service.NewFileService(files, registry, 1<<20, log)
	chatSvc := service.NewChatService(syncSvc, llm.NewRouter(llm.ProviderAnthropic, clients...), log)

	syncH := NewSyncHandler(syncSvc, log)
	streamH := NewStreamHandler(registry, keepAlive, 16, log)
	convH := NewConversationHandler(syncSvc, log)
	fileH := NewFileHandler(fileSvc, 1<<20, log)
	chatH := NewChatHandler(chatSvc, log)
	health := NewHealthHandler(documents, nil)

	r := chi.NewRouter()
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(middleware.AuthConfig{
			JWTSecret:           "test-secret",
			IdentityHeader:      identityHeader,
			TrustIdentityHeader: true,
		}))
		r.Get("/sync", syncH.Get)
		r.Post("/sync", syncH.Save)
		r.Get("/sync/stream", streamH.Stream)
		r.Post("/share-chat", syncH.Share)
		r.Post("/chat", chatH.Chat)
		r.Patch("/conversations/{id}", convH.Rename)
		r.Delete("/conversations/{id}", convH.Delete)
		r.Post("/conversations/{id}/move", convH.Move)
		r.Post("/folders", convH.CreateFolder)
		r.Patch("/folders/{id}", convH.RenameFolder)
		r.Delete("/folders/{id}", convH.DeleteFolder)
		r.Get("/shared-files", fileH.List)
		r.Post("/shared-files", fileH.Upload)
		r.Delete("/shared-files", fileH.Delete)
		r.Get("/shared-files/{fileId}", fileH.Download)
		r.Post("/shared-files/folders", fileH.CreateFolder)
		r.Delete("/shared-files/folders", fileH.DeleteFolder)
		r.Post("/shared-files/move", fileH.Move)
	})

	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = writeTimeout
	srv.Start()
	t.Cleanup(func() {
		streamH.Shutdown()
		srv.Close()
	})
	return &testServer{Server: srv, registry: registry, stream: streamH}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(identityHeader, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	Name string
	Data []byte
}

type sseReader struct {
	r *bufio.Reader
}

func (s *sseReader) next(t *testing.T) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := s.r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.Data != nil {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = []byte(strings.TrimPrefix(line, "data: "))
		}
	}
}

type syncFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *sseReader) nextSync(t *testing.T) syncFrame {
	t.Helper()
	var f syncFrame
	require.NoError(t, json.Unmarshal(s.next(t).Data, &f))
	return f
}

// openStream connects userID to the sync stream and waits for the
// connection to be registered.
func (s *testServer) openStream(t *testing.T, userID string) (*sseReader, context.CancelFunc) {
	t.Helper()
	before := s.registry.Subscribers(userID)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/api/sync/stream", nil)
	require.NoError(t, err)
	req.Header.Set(identityHeader, userID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	require.Eventually(t, func() bool {
		return s.registry.Subscribers(userID) == before+1
	}, time.Second, 5*time.Millisecond)

	return &sseReader{r: bufio.NewReader(resp.Body)}, cancel
}

func TestStream_RequiresIdentity(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := srv.do(t, http.MethodGet, "/api/sync/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, srv.registry.Users())
}

func TestStream_HandlerRejectsMissingUser(t *testing.T) {
	h := NewStreamHandler(realtime.NewRegistry(logger.NewNop()), time.Minute, 4, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Stream(rec, httptest.NewRequest(http.MethodGet, "/api/sync/stream", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStream_ConnectedThenUpdate(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	events, _ := srv.openStream(t, "alice")

	first := events.nextSync(t)
	assert.Equal(t, "connected", first.Type)

	doc := model.NewUserDocument()
	doc.Conversations = append(doc.Conversations, model.Conversation{ID: "c1", Title: "Hello", Messages: []model.Message{}})
	resp := srv.do(t, http.MethodPost, "/api/sync", "alice", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	update := events.nextSync(t)
	require.Equal(t, "update", update.Type)

	var got model.UserDocument
	require.NoError(t, json.Unmarshal(update.Data, &got))
	require.Len(t, got.Conversations, 1)
	assert.Equal(t, "Hello", got.Conversations[0].Title)
}

func TestStream_PingsIdleConnection(t *testing.T) {
	srv := newTestServer(t, 20*time.Millisecond)
	events, _ := srv.openStream(t, "alice")

	assert.Equal(t, "connected", events.nextSync(t).Type)
	assert.Equal(t, "ping", events.nextSync(t).Type)
	assert.Equal(t, "ping", events.nextSync(t).Type)
}

func TestStream_UnregistersOnDisconnect(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	events, cancel := srv.openStream(t, "alice")
	events.nextSync(t)

	cancel()

	require.Eventually(t, func() bool {
		return srv.registry.Subscribers("alice") == 0 && srv.registry.Users() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// A save with nobody listening still succeeds.
	resp := srv.do(t, http.MethodPost, "/api/sync", "alice", model.NewUserDocument())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStream_ShutdownEndsStreams(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	events, _ := srv.openStream(t, "alice")
	events.nextSync(t)

	srv.stream.Shutdown()

	require.Eventually(t, func() bool {
		return srv.registry.Subscribers("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSync_GetAndSave(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := srv.do(t, http.MethodGet, "/api/sync", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty model.UserDocument
	decodeBody(t, resp, &empty)
	assert.Empty(t, empty.Conversations)
	assert.Empty(t, empty.Folders)

	doc := model.NewUserDocument()
	doc.Folders = append(doc.Folders, model.Folder{ID: "f1", Name: "Work", Conversations: []string{}})
	resp = srv.do(t, http.MethodPost, "/api/sync", "alice", doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok model.SuccessResponse
	decodeBody(t, resp, &ok)
	assert.True(t, ok.Success)

	resp = srv.do(t, http.MethodGet, "/api/sync", "alice", nil)
	var got model.UserDocument
	decodeBody(t, resp, &got)
	require.Len(t, got.Folders, 1)
	assert.Equal(t, "Work", got.Folders[0].Name)

	// Other users are unaffected.
	resp = srv.do(t, http.MethodGet, "/api/sync", "bob", nil)
	var other model.UserDocument
	decodeBody(t, resp, &other)
	assert.Empty(t, other.Folders)
}

func TestSync_SaveRejectsInvalidBody(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sync", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set(identityHeader, "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestShare_DeliversToRecipient(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	bob, _ := srv.openStream(t, "bob")
	bob.nextSync(t)

	resp := srv.do(t, http.MethodPost, "/api/share-chat", "alice", model.ShareChatRequest{
		RecipientID: "bob",
		Chat:        &model.Conversation{Title: "Plans", Messages: []model.Message{{ID: "m1", Role: model.RoleUser, Content: "hi"}}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shared model.ShareChatResponse
	decodeBody(t, resp, &shared)
	require.True(t, shared.Success)
	assert.Equal(t, "alice", shared.Conversation.SharedFrom)

	update := bob.nextSync(t)
	require.Equal(t, "update", update.Type)
	var doc model.UserDocument
	require.NoError(t, json.Unmarshal(update.Data, &doc))
	require.Len(t, doc.Conversations, 1)
	assert.Equal(t, "Plans", doc.Conversations[0].Title)
	require.NotNil(t, doc.Conversations[0].FolderID)
	assert.Equal(t, model.InboxFolderID, *doc.Conversations[0].FolderID)
	require.NotNil(t, doc.FindFolder(model.InboxFolderID))
}

func TestShare_RequiresRecipient(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := srv.do(t, http.MethodPost, "/api/share-chat", "alice", map[string]any{
		"chat": map[string]any{"title": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversations_Lifecycle(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	doc := model.NewUserDocument()
	doc.Conversations = append(doc.Conversations, model.Conversation{ID: "c1", Title: "Old", Messages: []model.Message{}})
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/sync", "alice", doc).StatusCode)

	resp := srv.do(t, http.MethodPost, "/api/folders", "alice", model.CreateFolderRequest{Name: "Work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var folder model.Folder
	decodeBody(t, resp, &folder)
	require.NotEmpty(t, folder.ID)

	resp = srv.do(t, http.MethodPatch, "/api/conversations/c1", "alice", model.RenameRequest{Title: "New"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, "/api/conversations/c1/move", "alice", model.MoveConversationRequest{FolderID: &folder.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPatch, "/api/folders/"+folder.ID, "alice", model.RenameRequest{Title: "Projects"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.UserDocument
	decodeBody(t, srv.do(t, http.MethodGet, "/api/sync", "alice", nil), &got)
	conv := got.FindConversation("c1")
	require.NotNil(t, conv)
	assert.Equal(t, "New", conv.Title)
	require.NotNil(t, conv.FolderID)
	assert.Equal(t, folder.ID, *conv.FolderID)
	assert.Equal(t, "Projects", got.FindFolder(folder.ID).Name)

	resp = srv.do(t, http.MethodDelete, "/api/folders/"+folder.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/conversations/c1", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var after model.UserDocument
	decodeBody(t, srv.do(t, http.MethodGet, "/api/sync", "alice", nil), &after)
	require.NotNil(t, after.FindConversation("c1"))
	assert.True(t, after.FindConversation("c1").Deleted)
	assert.Nil(t, after.FindFolder(folder.ID))
}

func TestConversations_Errors(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"rename missing conversation", http.MethodPatch, "/api/conversations/nope", model.RenameRequest{Title: "x"}, http.StatusNotFound},
		{"rename without title", http.MethodPatch, "/api/conversations/nope", model.RenameRequest{}, http.StatusBadRequest},
		{"move into missing folder", http.MethodPost, "/api/conversations/nope/move", model.MoveConversationRequest{FolderID: model.StringPtr("f")}, http.StatusNotFound},
		{"delete missing folder", http.MethodDelete, "/api/folders/nope", nil, http.StatusNotFound},
		{"folder without name", http.MethodPost, "/api/folders", model.CreateFolderRequest{}, http.StatusBadRequest},
		{"folder with missing parent", http.MethodPost, "/api/folders", model.CreateFolderRequest{Name: "x", ParentID: model.StringPtr("p")}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(t, tt.method, tt.path, "alice", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func upload(t *testing.T, srv *testServer, userID, name, content string, folderID string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("uploaderName", "Alice"))
	if folderID != "" {
		require.NoError(t, mw.WriteField("folderId", folderID))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/shared-files", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(identityHeader, userID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestFiles_UploadDownloadDelete(t *testing.T) {
	srv := newTestServer(t, time.Minute)
	events, _ := srv.openStream(t, "alice")
	events.nextSync(t)

	resp := upload(t, srv, "alice", "notes.txt", "hello files", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var file model.SharedFile
	decodeBody(t, resp, &file)
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(len("hello files")), file.Size)
	assert.Equal(t, "alice", file.UploaderID)
	assert.Equal(t, "Alice", file.UploaderName)

	frame := events.nextSync(t)
	assert.Equal(t, "files", frame.Type)

	var meta model.FileMetadata
	decodeBody(t, srv.do(t, http.MethodGet, "/api/shared-files", "alice", nil), &meta)
	require.Len(t, meta.Files, 1)

	resp = srv.do(t, http.MethodGet, "/api/shared-files/"+file.ID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello files", string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "notes.txt")

	resp = srv.do(t, http.MethodDelete, "/api/shared-files", "alice", model.DeleteFileRequest{FileID: file.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/shared-files/"+file.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/shared-files", "alice", model.DeleteFileRequest{FileID: file.ID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFiles_Folders(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := srv.do(t, http.MethodPost, "/api/shared-files/folders", "alice", model.CreateFolderRequest{Name: "Docs"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var folder model.SharedFolder
	decodeBody(t, resp, &folder)

	resp = srv.do(t, http.MethodPost, "/api/shared-files/folders", "alice", model.CreateFolderRequest{Name: "Docs"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = upload(t, srv, "alice", "a.txt", "a", "")
	var file model.SharedFile
	decodeBody(t, resp, &file)

	resp = srv.do(t, http.MethodPost, "/api/shared-files/move", "alice", model.MoveItemRequest{
		ItemID: file.ID, ItemType: "file", TargetFolderID: &folder.ID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, "/api/shared-files/move", "alice", model.MoveItemRequest{
		ItemID: folder.ID, ItemType: "folder", TargetFolderID: &folder.ID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodDelete, "/api/shared-files/folders", "alice", model.DeleteFolderRequest{FolderID: folder.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var meta model.FileMetadata
	decodeBody(t, srv.do(t, http.MethodGet, "/api/shared-files", "alice", nil), &meta)
	assert.Empty(t, meta.Files)
	assert.Empty(t, meta.Folders)
}

func TestFiles_UploadToMissingFolder(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := upload(t, srv, "alice", "a.txt", "a", "missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChat_NoProvider(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := srv.do(t, http.MethodPost, "/api/chat", "alice", model.ChatRequest{Content: "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChat_StreamsTokensAndSavesTurn(t *testing.T) {
	srv := newTestServer(t, time.Minute, &fakeLLM{tokens: []string{"Hel", "lo"}})
	events, _ := srv.openStream(t, "alice")
	events.nextSync(t)

	resp := srv.do(t, http.MethodPost, "/api/chat", "alice", model.ChatRequest{Content: "Say hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := &sseReader{r: bufio.NewReader(resp.Body)}

	var tok model.TokenEvent
	ev := chat.next(t)
	require.Equal(t, "token", ev.Name)
	require.NoError(t, json.Unmarshal(ev.Data, &tok))
	assert.Equal(t, model.TokenEvent{Token: "Hel", Index: 0}, tok)

	ev = chat.next(t)
	require.Equal(t, "token", ev.Name)

	ev = chat.next(t)
	require.Equal(t, "done", ev.Name)
	var done model.ChatDoneEvent
	require.NoError(t, json.Unmarshal(ev.Data, &done))
	assert.Equal(t, "Hello", done.Message.Content)
	assert.NotEmpty(t, done.ConversationID)

	// The other connection sees the saved turn once.
	update := events.nextSync(t)
	require.Equal(t, "update", update.Type)
	var doc model.UserDocument
	require.NoError(t, json.Unmarshal(update.Data, &doc))
	conv := doc.FindConversation(done.ConversationID)
	require.NotNil(t, conv)
	assert.Equal(t, "Say hello", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
}

func TestChat_OutlastsWriteTimeout(t *testing.T) {
	client := &fakeLLM{tokens: []string{"slow", " but", " done"}, delay: 150 * time.Millisecond}
	srv := newTestServerWithWriteTimeout(t, 200*time.Millisecond, time.Minute, client)

	resp := srv.do(t, http.MethodPost, "/api/chat", "alice", model.ChatRequest{Content: "take your time"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chat := &sseReader{r: bufio.NewReader(resp.Body)}

	for i := 0; i < 3; i++ {
		require.Equal(t, "token", chat.next(t).Name)
	}
	ev := chat.next(t)
	require.Equal(t, "done", ev.Name)
	var done model.ChatDoneEvent
	require.NoError(t, json.Unmarshal(ev.Data, &done))
	assert.Equal(t, "slow but done", done.Message.Content)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, time.Minute)

	resp := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
