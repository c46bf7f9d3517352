package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/forge-ai/scribe/internal/upload"
)

// FilesClient is the Google files-API backend. It has no inline text call:
// generation consumes handles produced by the upload lifecycle manager, so
// it implements upload.FileStore plus GenerateWithFiles.
type FilesClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewFiles resolves the files provider from config, gating on the
// credential before any network call.
func NewFiles(cfg Config) (*FilesClient, error) {
	if cfg.Credential == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredential, GoogleFiles)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(GoogleFiles)
	}
	return &FilesClient{apiKey: cfg.Credential, model: model, baseURL: googleURL, client: &http.Client{}}, nil
}

// Upload submits one staged file as a multipart/related media upload and
// returns its remote handle. The remote side is eventually consistent: the
// returned state is usually pending and must be polled to active.
func (fc *FilesClient) Upload(ctx context.Context, path, contentType, displayName string) (upload.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.Handle{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return upload.Handle{}, err
	}
	if err := json.NewEncoder(meta).Encode(map[string]any{"file": map[string]string{"display_name": displayName}}); err != nil {
		return upload.Handle{}, err
	}
	media, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return upload.Handle{}, err
	}
	if _, err := io.Copy(media, f); err != nil {
		return upload.Handle{}, err
	}
	mw.Close()

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", fc.baseURL, fc.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return upload.Handle{}, err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := fc.client.Do(req)
	if err != nil {
		return upload.Handle{}, fmt.Errorf("%w: file upload: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var ur struct {
		File struct {
			Name     string `json:"name"`
			URI      string `json:"uri"`
			State    string `json:"state"`
			MimeType string `json:"mimeType"`
		} `json:"file"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &ur); err != nil {
		return upload.Handle{}, fmt.Errorf("upload decode: %w", err)
	}
	if ur.Error != nil {
		return upload.Handle{}, fmt.Errorf("google files: %s", ur.Error.Message)
	}
	if ur.File.Name == "" {
		return upload.Handle{}, fmt.Errorf("%w: google files: unexpected status %s", ErrTransport, resp.Status)
	}

	return upload.Handle{
		Name:        ur.File.Name,
		URI:         ur.File.URI,
		ContentType: contentType,
		State:       remoteState(ur.File.State),
		CreatedAt:   time.Now(),
	}, nil
}

// Status reports the remote readiness of an uploaded file.
func (fc *FilesClient) Status(ctx context.Context, name string) (upload.State, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", fc.baseURL, name, fc.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return upload.StatePending, err
	}

	resp, err := fc.client.Do(req)
	if err != nil {
		return upload.StatePending, fmt.Errorf("%w: file status: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var fr struct {
		State string `json:"state"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &fr); err != nil {
		return upload.StatePending, fmt.Errorf("status decode: %w", err)
	}
	if fr.Error != nil {
		return upload.StatePending, fmt.Errorf("google files: %s", fr.Error.Message)
	}
	return remoteState(fr.State), nil
}

// Delete removes an uploaded file from remote storage.
func (fc *FilesClient) Delete(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", fc.baseURL, name, fc.apiKey)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return err
	}
	resp, err := fc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: file delete: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("google files: delete %s: unexpected status %s", name, resp.Status)
	}
	return nil
}

// GenerateWithFiles calls generateContent with the uploaded files as
// file-reference parts, in handle order, followed by the prompt text.
func (fc *FilesClient) GenerateWithFiles(ctx context.Context, prompt, system string, refs []upload.Handle) (string, error) {
	parts := make([]googlePart, 0, len(refs)+1)
	for _, h := range refs {
		parts = append(parts, googlePart{
			"file_data": map[string]string{"file_uri": h.URI, "mime_type": h.ContentType},
		})
	}
	parts = append(parts, googlePart{"text": prompt})
	return googleGenerate(ctx, fc.client, fc.baseURL, fc.apiKey, fc.model, parts, system)
}

func remoteState(s string) upload.State {
	switch s {
	case "ACTIVE":
		return upload.StateActive
	case "FAILED":
		return upload.StateFailed
	default:
		return upload.StatePending
	}
}
