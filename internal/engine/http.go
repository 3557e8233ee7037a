package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/bft-labs/modelhost/pkg/log"
)

const completionEndpoint = "/completion"

// ErrNotLoaded is returned by Complete before a successful Load.
var ErrNotLoaded = errors.New("engine: model not loaded")

// ErrNoInference is returned when no inference endpoint is configured.
var ErrNoInference = errors.New("engine: no inference endpoint configured")

// HTTPClient is the subset of *http.Client used by HTTPEngine.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPEngine downloads model weights over HTTP into a cache directory and
// runs completions against a llama.cpp compatible server.
type HTTPEngine struct {
	client       HTTPClient
	cacheDir     string
	inferenceURL string
	logger       log.Logger

	mu        sync.RWMutex
	modelPath string
}

// NewHTTPEngine creates an engine. inferenceURL may be empty, in which case
// Complete fails with ErrNoInference.
func NewHTTPEngine(client HTTPClient, cacheDir, inferenceURL string, logger log.Logger) *HTTPEngine {
	return &HTTPEngine{
		client:       client,
		cacheDir:     cacheDir,
		inferenceURL: inferenceURL,
		logger:       log.OrNoop(logger),
	}
}

// Load downloads source unless it is already cached.
func (e *HTTPEngine) Load(ctx context.Context, source string, progress ProgressFunc) error {
	dst, err := e.cachePath(source)
	if err != nil {
		return err
	}

	if st, err := os.Stat(dst); err == nil && st.Size() > 0 {
		e.logger.Info("model found in cache", log.String("path", dst))
		if progress != nil {
			progress(st.Size(), st.Size())
		}
		e.setModel(dst)
		return nil
	}

	if err := os.MkdirAll(e.cacheDir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download model: server returned %d: %s", resp.StatusCode, string(body))
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}

	pr := &progressReader{r: resp.Body, total: resp.ContentLength, fn: progress}
	if _, err := io.Copy(f, pr); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download model: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("store model file: %w", err)
	}

	e.setModel(dst)
	return nil
}

// Complete posts prompt to the inference server.
func (e *HTTPEngine) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if e.model() == "" {
		return "", ErrNotLoaded
	}
	if e.inferenceURL == "" {
		return "", ErrNoInference
	}

	payload := struct {
		Prompt string `json:"prompt"`
		CompletionOptions
	}{Prompt: prompt, CompletionOptions: opts}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.inferenceURL+completionEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion: server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return out.Content, nil
}

// Close forgets the loaded model. The cached file is kept.
func (e *HTTPEngine) Close() error {
	e.setModel("")
	return nil
}

func (e *HTTPEngine) model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.modelPath
}

func (e *HTTPEngine) setModel(p string) {
	e.mu.Lock()
	e.modelPath = p
	e.mu.Unlock()
}

func (e *HTTPEngine) cachePath(source string) (string, error) {
	name, err := CacheFileName(source)
	if err != nil {
		return "", err
	}
	return filepath.Join(e.cacheDir, name), nil
}

// CacheFileName is the name a downloaded source is cached under.
func CacheFileName(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse model source: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("model source %q has no file name", source)
	}
	return name, nil
}

type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.fn != nil {
			p.fn(p.loaded, p.total)
		}
	}
	return n, err
}
