package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"

	"github.com/fruitsalade/webdrive/pkg/protocol"
)

// ListFiles calls GET /files.
func (c *Client) ListFiles(ctx context.Context, q protocol.FileQuery) (json.RawMessage, error) {
	return c.get(ctx, "/files", q.Values())
}

// GetFile calls GET /files/{id}.
func (c *Client) GetFile(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, pathID("/files", id), nil)
}

// UpdateFile renames or moves a file.
func (c *Client) UpdateFile(ctx context.Context, id string, req protocol.UpdateRequest) (json.RawMessage, error) {
	return c.sendJSON(ctx, http.MethodPut, pathID("/files", id), nil, req)
}

// DeleteFile moves a file to the trash.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/files", id), nil, nil)
	return err
}

// ListFolders calls GET /folders.
func (c *Client) ListFolders(ctx context.Context, q protocol.FolderQuery) (json.RawMessage, error) {
	return c.get(ctx, "/folders", q.Values())
}

// GetFolder calls GET /folders/{id}.
func (c *Client) GetFolder(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, pathID("/folders", id), nil)
}

// CreateFolder creates a folder under parentID, or at root when parentID is
// empty.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (json.RawMessage, error) {
	req := protocol.CreateFolderRequest{Name: name}
	if parentID != "" {
		req.ParentID = &parentID
	}
	return c.sendJSON(ctx, http.MethodPost, "/folders", nil, req)
}

// UpdateFolder renames or moves a folder.
func (c *Client) UpdateFolder(ctx context.Context, id string, req protocol.UpdateRequest) (json.RawMessage, error) {
	return c.sendJSON(ctx, http.MethodPut, pathID("/folders", id), nil, req)
}

// DeleteFolder moves a folder to the trash.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, pathID("/folders", id), nil, nil)
	return err
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// Progress receives the bytes sent so far and the request size.
type Progress func(sent, total int64)

// Upload sends files as one multipart request (form field "files") into
// folderID, or root when empty. progress may be nil.
func (c *Client) Upload(ctx context.Context, folderID string, files []UploadFile, progress Progress) (json.RawMessage, error) {
	if len(files) == 0 {
		return nil, clientError(fmt.Errorf("no files to upload"))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, clientError(err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, clientError(fmt.Errorf("read %s: %w", f.Name, err))
		}
	}
	if folderID != "" {
		if err := w.WriteField("folderId", folderID); err != nil {
			return nil, clientError(err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, clientError(err)
	}

	p := &payload{contentType: w.FormDataContentType(), data: buf.Bytes()}
	if progress != nil {
		total := int64(buf.Len())
		p.wrap = func(r io.Reader) io.Reader {
			return &progressReader{r: r, total: total, fn: progress}
		}
	}
	return c.do(ctx, http.MethodPost, "/files/upload", nil, p)
}

type progressReader struct {
	r     io.Reader
	sent  atomic.Int64
	total int64
	fn    Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.fn(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}
