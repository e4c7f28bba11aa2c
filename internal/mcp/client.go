package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	xerrors "NFTScout/internal/errors"
)

const defaultTimeout = 30 * time.Second

// Config 描述连接 MCP 服务所需的信息。
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client 通过 HTTP 与 MCP 服务通信，使用 JSON-RPC 2.0 协议。
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	requestID  atomic.Int64
}

// NewClient 根据配置创建 MCP 客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("未提供 MCP 服务地址")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:   baseURL,
		authToken: strings.TrimSpace(cfg.AuthToken),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Tools 拉取服务暴露的工具列表。
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	result, err := c.invoke(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamTool, err, "解析工具列表失败")
	}
	return decoded.Tools, nil
}

// Call 调用指定工具并返回结果。
func (c *Client) Call(ctx context.Context, name string, input json.RawMessage) (*Result, error) {
	params := map[string]any{"name": name}
	if len(input) > 0 {
		params["arguments"] = input
	}
	result, err := c.invoke(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}
	var decoded Result
	if err := json.Unmarshal(result, &decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamTool, err, "解析工具调用结果失败")
	}
	return &decoded, nil
}

func (c *Client) invoke(ctx context.Context, method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("序列化 MCP 请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 MCP 请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamTool, err, "请求 MCP 服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.New(xerrors.CodeUpstreamTool,
			fmt.Sprintf("MCP 服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamTool, err, "解析 MCP 响应失败")
	}
	if decoded.Error != nil {
		return nil, xerrors.New(xerrors.CodeUpstreamTool,
			fmt.Sprintf("MCP 服务返回错误 %d: %s", decoded.Error.Code, decoded.Error.Message))
	}
	return decoded.Result, nil
}
