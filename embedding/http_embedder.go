package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/filmrec/core"
)

// HTTPEmbedder 是外部文本编码服务的 REST 客户端（如 sentence-transformers 服务）。
//
// 请求格式：POST {Endpoint}/embed  {"text": "..."}
// 响应格式：{"vector": [f1, f2, ...]}
//
// 服务端应返回归一化向量，与索引的余弦度量配套。
type HTTPEmbedder struct {
	// Endpoint 服务端点，例如 "http://localhost:8090"
	Endpoint string

	// Timeout 超时时间
	Timeout time.Duration

	httpClient *http.Client
}

// HTTPEmbedderOption 客户端配置选项
type HTTPEmbedderOption func(*HTTPEmbedder)

// WithTimeout 设置请求超时。
func WithTimeout(d time.Duration) HTTPEmbedderOption {
	return func(c *HTTPEmbedder) {
		c.Timeout = d
	}
}

// NewHTTPEmbedder 创建编码服务客户端。
func NewHTTPEmbedder(endpoint string, opts ...HTTPEmbedderOption) *HTTPEmbedder {
	c := &HTTPEmbedder{
		Endpoint: endpoint,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.Timeout}
	return c
}

var _ core.Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float64 `json:"vector"`
}

// Embed 调用编码服务，把文本转为稠密向量。
func (c *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeUnavailable, "embedding: encoder unreachable: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInternalError,
			fmt.Sprintf("embedding: encoder returned %d: %s", resp.StatusCode, string(data)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Vector) == 0 {
		return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInternalError, "embedding: encoder returned empty vector")
	}
	return out.Vector, nil
}
