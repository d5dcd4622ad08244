package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Repository is the subset of repository metadata the probe reports.
type Repository struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Repository fetches the destination repository's metadata. It doubles as
// the credential probe: a revoked or misscoped token surfaces here as
// 401/403 before any artifact work happens.
func (c *Client) Repository(ctx context.Context) (*Repository, error) {
	var repo Repository
	if err := c.do(ctx, http.MethodGet, "/repos/"+c.repo, nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// File is a repository file fetched through the contents API.
type File struct {
	Path    string
	SHA     string
	Size    int
	Content []byte
}

type contentsResponse struct {
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// DownloadFile fetches one file from the configured branch. Returns an
// error matching ErrNotFound when the path does not exist.
func (c *Client) DownloadFile(ctx context.Context, path string) (*File, error) {
	reqPath := c.contentsPath(path) + "?ref=" + url.QueryEscape(c.branch)

	var resp contentsResponse
	if err := c.do(ctx, http.MethodGet, reqPath, nil, &resp); err != nil {
		return nil, err
	}
	content, err := decodeContent(resp)
	if err != nil {
		return nil, err
	}
	return &File{
		Path:    resp.Path,
		SHA:     resp.SHA,
		Size:    resp.Size,
		Content: content,
	}, nil
}

// decodeContent unwraps the transport encoding of a contents API response.
// The API wraps file bodies in Base64 with embedded newlines.
func decodeContent(resp contentsResponse) ([]byte, error) {
	if resp.Content == "" {
		return nil, nil
	}
	if resp.Encoding != "" && resp.Encoding != "base64" {
		return nil, fmt.Errorf("github: unsupported content encoding %q for %s", resp.Encoding, resp.Path)
	}
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("github: decode content of %s: %w", resp.Path, err)
	}
	return content, nil
}

// UploadResult reports what an UploadFile call did.
type UploadResult struct {
	// Uploaded is false when the remote content already matched and the
	// write was skipped.
	Uploaded bool

	// Created is true when the file did not exist before.
	Created bool

	// SHA is the blob SHA after the call.
	SHA string
}

type putContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type putContentsResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// UploadFile creates or updates one file on the configured branch. The
// current remote blob is fetched first: an update reuses its SHA, and when
// the remote content already equals content the PUT is skipped entirely.
func (c *Client) UploadFile(ctx context.Context, path string, content []byte, message string) (*UploadResult, error) {
	existing, err := c.DownloadFile(ctx, path)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	if existing != nil && bytes.Equal(existing.Content, content) {
		return &UploadResult{Uploaded: false, SHA: existing.SHA}, nil
	}

	req := putContentsRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.branch,
	}
	if existing != nil {
		req.SHA = existing.SHA
	}

	var resp putContentsResponse
	if err := c.do(ctx, http.MethodPut, c.contentsPath(path), req, &resp); err != nil {
		return nil, err
	}
	return &UploadResult{
		Uploaded: true,
		Created:  existing == nil,
		SHA:      resp.Content.SHA,
	}, nil
}

// contentsPath builds the API path for a file, escaping each segment while
// keeping directory separators.
func (c *Client) contentsPath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("/repos/%s/contents/%s", c.repo, strings.Join(segments, "/"))
}
