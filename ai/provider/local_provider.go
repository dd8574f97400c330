package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

// LocalProvider talks to a local inference server.
// Supports Ollama, LocalAI, or any OpenAI-compatible local endpoint.
type LocalProvider struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	config     am.LocalInferenceConfig
	logger     *zap.SugaredLogger
}

// NewLocalProvider creates a provider for local inference
func NewLocalProvider(cfg *am.LocalInferenceConfig) *LocalProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &LocalProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		config: *cfg,
		logger: logger.ComponentLogger("provider"),
	}
}

// GetModelName returns the configured local model name
func (lp *LocalProvider) GetModelName() string {
	return lp.model
}

// GenerateText sends a prompt to the local inference server.
//
// Errors are classified: an unreachable endpoint or non-200 answer wraps
// ErrModelUnavailable, an expired deadline wraps ErrModelTimeout.
// The call is made once; callers decide whether to retry.
func (lp *LocalProvider) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if lp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lp.timeout)
		defer cancel()
	}

	reqBody := ChatCompletionRequest{
		Model: lp.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: &CompletionOpts{
			Temperature: lp.config.Temperature,
			TopP:        lp.config.TopP,
			MaxTokens:   lp.config.MaxTokens,
			NumCtx:      lp.config.ContextSize, // 0 = model default
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	endpoint := lp.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := lp.httpClient.Do(req)
	if err != nil {
		return "", lp.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Wrapf(errors.ErrModelUnavailable, "local inference returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusNotFound {
			err = errors.WithHintf(err, "is model %q pulled? try: ollama pull %s", lp.model, lp.model)
		}
		return "", err
	}

	var completion ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.Wrapf(errors.ErrModelTimeout, "no answer from %s within %s", lp.model, lp.timeout)
		}
		return "", errors.Wrapf(errors.ErrModelUnavailable, "malformed completion envelope: %v", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.Wrap(errors.ErrModelUnavailable, "no completion choices returned")
	}

	content := completion.Choices[0].Message.Content
	lp.logger.Debugw("completion received",
		logger.FieldModel, lp.model,
		logger.FieldTextLen, len(content),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return content, nil
}

// classifyTransportError maps a failed round trip onto the model error taxonomy
func (lp *LocalProvider) classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(errors.ErrModelTimeout, "no answer from %s within %s", lp.model, lp.timeout)
	}
	if ctx.Err() == context.Canceled {
		return errors.Wrap(ctx.Err(), "model call cancelled")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(errors.ErrModelTimeout, "no answer from %s within %s", lp.model, lp.timeout)
	}
	return errors.WithHintf(
		errors.Wrapf(errors.ErrModelUnavailable, "cannot reach %s: %v", lp.baseURL, err),
		"start the local model server (ollama serve) or set local_inference.base_url")
}

// ListModels returns the models installed on an Ollama server (GET /api/tags)
func (lp *LocalProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lp.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := lp.httpClient.Do(req)
	if err != nil {
		return nil, lp.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrModelUnavailable, "model listing returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, errors.Wrap(errors.ErrModelUnavailable, "malformed model listing")
	}
	return tags.Models, nil
}

// HasModel reports whether name (with or without a ":latest" tag) is installed
func HasModel(models []ModelInfo, name string) bool {
	for _, m := range models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return true
		}
	}
	return false
}

var _ TextGenerator = (*LocalProvider)(nil)
