package ollama

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/core/ports"
	"github.com/betomay/papertoplan/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	logicModel  string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(baseURL, logicModel, visionModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		logicModel:  logicModel,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		executor:    executor,
	}
}

// GenerateJSON invokes the logic model with JSON-mode output requested.
// Transport failures come back wrapped as domain.ErrServiceUnavailable so
// the analysis engine can distinguish them from malformed output.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.logicModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "generate", "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Transcriber implements the vision fallback: it sends the capture to the
// vision model together with up to MaxFewShotExemplars prior corrections as
// handwriting-style exemplars.
type Transcriber struct {
	client  *Client
	storage ports.ObjectStorage
}

func NewTranscriber(client *Client, storage ports.ObjectStorage) *Transcriber {
	return &Transcriber{client: client, storage: storage}
}

func (t *Transcriber) Transcribe(ctx context.Context, image io.Reader, exemplars []domain.Correction) (string, error) {
	raw, err := io.ReadAll(image)
	if err != nil {
		return "", err
	}

	if len(exemplars) > domain.MaxFewShotExemplars {
		exemplars = exemplars[:domain.MaxFewShotExemplars]
	}

	images := make([]string, 0, len(exemplars)+1)
	attached := make([]domain.Correction, 0, len(exemplars))
	for _, ex := range exemplars {
		encoded, err := t.loadExemplarImage(ctx, ex.ImagePath)
		if err != nil {
			// A missing exemplar image only weakens the style bias.
			continue
		}
		images = append(images, encoded)
		attached = append(attached, ex)
	}
	images = append(images, base64.StdEncoding.EncodeToString(raw))

	reqBody := map[string]any{
		"model":  t.client.visionModel,
		"stream": false,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": buildTranscriptionPrompt(attached),
				"images":  images,
			},
		},
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := t.client.call(ctx, "transcribe", "/api/chat", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Message.Content), nil
}

func (t *Transcriber) loadExemplarImage(ctx context.Context, path string) (string, error) {
	reader, err := t.storage.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Ping checks backend reachability; used by the configuration test endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrServiceUnavailable, "ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrServiceUnavailable, "ping", &HTTPStatusError{
			Operation:  "ping",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}
	return nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	fn := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, fn, classifyOllamaError)
	} else {
		err = fn(ctx)
	}
	return wrapUnavailableIfNeeded(operation, err)
}
