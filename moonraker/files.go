package moonraker

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// FileMetadata is the subset of server.files.metadata the panel shows.
type FileMetadata struct {
	Filename         string
	Size             int64
	Slicer           string
	EstimatedTime    int // seconds
	FilamentTotal    float64
	LayerHeight      float64
	FirstLayerHeight float64
	ObjectHeight     float64
}

// DownloadFile fetches /server/files/{root}/{path} on a transient
// goroutine. Continuations fire on the UI loop.
func (c *Client) DownloadFile(root, path string, onSuccess func(data []byte), onError ErrCallback) {
	target := c.fileURL(root, path)
	go func() {
		resp, err := httpClient.Get(target)
		if err != nil {
			c.postError(onError, newError(KindTransport, "GET "+target, err.Error()))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			c.postError(onError, newError(KindFileNotFound, "GET "+target, path))
			return
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.postError(onError, newError(KindTransport, "GET "+target,
				fmt.Sprintf("http status %d", resp.StatusCode)))
			return
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			c.postError(onError, newError(KindTransport, "GET "+target, err.Error()))
			return
		}
		if onSuccess != nil {
			c.loop.Post(func() {
				defer c.recoverCallback("download_file")
				onSuccess(data)
			})
		}
	}()
}

// UploadFile posts multipart form data to /server/files/upload with the
// fields root, path and file.
func (c *Client) UploadFile(root, path string, data []byte, onSuccess func(), onError ErrCallback) {
	target := c.httpBase.JoinPath("server", "files", "upload").String()
	go func() {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		writer.WriteField("root", root)
		writer.WriteField("path", path)
		part, err := writer.CreateFormFile("file", path)
		if err == nil {
			_, err = part.Write(data)
		}
		if err == nil {
			err = writer.Close()
		}
		if err != nil {
			c.postError(onError, newError(KindTransport, "POST "+target, err.Error()))
			return
		}

		resp, err := httpClient.Post(target, writer.FormDataContentType(), &body)
		if err != nil {
			c.postError(onError, newError(KindTransport, "POST "+target, err.Error()))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.postError(onError, newError(KindTransport, "POST "+target,
				fmt.Sprintf("http status %d", resp.StatusCode)))
			return
		}
		if onSuccess != nil {
			c.loop.Post(func() {
				defer c.recoverCallback("upload_file")
				onSuccess()
			})
		}
	}()
}

// FileMeta fetches server.files.metadata for a gcode file.
func (c *Client) FileMeta(filename string, onSuccess func(FileMetadata), onError ErrCallback) {
	c.Send("server.files.metadata", map[string]any{"filename": filename}, func(result any) {
		meta := asMap(result)
		out := FileMetadata{
			Filename:         asString(meta["filename"]),
			Size:             int64(asFloat(meta["size"])),
			Slicer:           asString(meta["slicer"]),
			EstimatedTime:    int(asFloat(meta["estimated_time"])),
			FilamentTotal:    asFloat(meta["filament_total"]),
			LayerHeight:      asFloat(meta["layer_height"]),
			FirstLayerHeight: asFloat(meta["first_layer_height"]),
			ObjectHeight:     asFloat(meta["object_height"]),
		}
		if out.Filename == "" {
			out.Filename = filename
		}
		if onSuccess != nil {
			onSuccess(out)
		}
	}, onError, TimeoutFast)
}

func (c *Client) fileURL(root, path string) string {
	u := c.httpBase.JoinPath("server", "files", root)
	// Escape path segments but keep the separators.
	u.Path += "/" + path
	u.RawPath = ""
	return u.String()
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

// Convenience wrappers over the server.files RPC surface.

// DeleteFile removes root/path on the server.
func (c *Client) DeleteFile(root, path string, onSuccess Callback, onError ErrCallback) {
	c.Send("server.files.delete_file", map[string]any{"path": root + "/" + path}, onSuccess, onError, TimeoutFast)
}

// MoveFile renames or moves a file between roots.
func (c *Client) MoveFile(source, dest string, onSuccess Callback, onError ErrCallback) {
	c.Send("server.files.move", map[string]any{"source": source, "dest": dest}, onSuccess, onError, TimeoutFast)
}

// CopyFile copies a file on the server.
func (c *Client) CopyFile(source, dest string, onSuccess Callback, onError ErrCallback) {
	c.Send("server.files.copy", map[string]any{"source": source, "dest": dest}, onSuccess, onError, TimeoutFast)
}

// CreateDirectory makes a directory under a root.
func (c *Client) CreateDirectory(path string, onSuccess Callback, onError ErrCallback) {
	c.Send("server.files.post_directory", map[string]any{"path": path}, onSuccess, onError, TimeoutFast)
}

// DeleteDirectory removes a directory; force removes contents too.
func (c *Client) DeleteDirectory(path string, force bool, onSuccess Callback, onError ErrCallback) {
	c.Send("server.files.delete_directory", map[string]any{"path": path, "force": force}, onSuccess, onError, TimeoutFast)
}

// ListFiles lists a root (default "gcodes").
func (c *Client) ListFiles(root string, onSuccess Callback, onError ErrCallback) {
	if root == "" {
		root = "gcodes"
	}
	c.Send("server.files.list", map[string]any{"root": root}, onSuccess, onError, TimeoutFast)
}
