package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

// apiClient makes one-off requests to the sync server.
type apiClient struct {
	base  string
	user  string
	token string
	http  *http.Client
}

func newAPIClient(opts *globalOptions) (*apiClient, error) {
	if opts.User == "" && opts.Token == "" {
		return nil, errors.New("either --user or --token is required")
	}
	return &apiClient{
		base:  strings.TrimRight(opts.Server, "/"),
		user:  opts.User,
		token: opts.Token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.Header.Set("X-User-Id", c.user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) document(ctx context.Context) (*model.UserDocument, error) {
	var doc model.UserDocument
	if err := c.do(ctx, http.MethodGet, "/api/sync", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *apiClient) renameConversation(ctx context.Context, id, title string) error {
	return c.do(ctx, http.MethodPatch, "/api/conversations/"+url.PathEscape(id), model.RenameRequest{Title: title}, nil)
}

func (c *apiClient) createFolder(ctx context.Context, name string, parentID *string) (*model.Folder, error) {
	var folder model.Folder
	err := c.do(ctx, http.MethodPost, "/api/folders", model.CreateFolderRequest{Name: name, ParentID: parentID}, &folder)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (c *apiClient) share(ctx context.Context, recipientID string, chat *model.Conversation) (*model.ShareChatResponse, error) {
	var resp model.ShareChatResponse
	err := c.do(ctx, http.MethodPost, "/api/share-chat", model.ShareChatRequest{RecipientID: recipientID, Chat: chat}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
