package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-net-dispatch/pkg/dispatch"
	"github.com/shouni/go-net-dispatch/pkg/request"
	"github.com/shouni/go-net-dispatch/pkg/retry"
)

// prepare は、テスト用の準備済みリクエストを構築するヘルパーです。
func prepare(t *testing.T, req *request.Request) *request.Prepared {
	t.Helper()
	prepared, err := request.Prepare(req, request.Defaults{})
	require.NoError(t, err)
	return prepared
}

func TestStandard_CanHandle(t *testing.T) {
	h := NewStandard()

	tests := []struct {
		name    string
		req     *request.Request
		decline bool
	}{
		{
			name: "httpスキームは受理する",
			req:  &request.Request{URL: "http://example.com"},
		},
		{
			name: "httpsスキームは受理する",
			req:  &request.Request{URL: "https://example.com"},
		},
		{
			name:    "ftpスキームは辞退する",
			req:     &request.Request{URL: "ftp://example.com/file.txt"},
			decline: true,
		},
		{
			name: "httpプロキシ付きは受理する",
			req: &request.Request{
				URL:     "https://example.com",
				Proxies: map[string]string{"all": "http://proxy:8080"},
			},
		},
		{
			name: "socks5プロキシ付きは辞退する",
			req: &request.Request{
				URL:     "https://example.com",
				Proxies: map[string]string{"all": "socks5://127.0.0.1:1080"},
			},
			decline: true,
		},
		{
			name: "パース不能なプロキシURLは辞退する",
			req: &request.Request{
				URL:     "https://example.com",
				Proxies: map[string]string{"all": "http://[invalid"},
			},
			decline: true,
		},
		{
			name: "既知の拡張オプションは受理する",
			req: &request.Request{
				URL:        "https://example.com",
				Extensions: map[string]any{ExtInsecureTLS: true},
			},
		},
		{
			name: "未知の拡張オプションは辞退する",
			req: &request.Request{
				URL:        "https://example.com",
				Extensions: map[string]any{"impersonate": "chrome"},
			},
			decline: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.CanHandle(prepare(t, tt.req))
			if tt.decline {
				require.Error(t, err)
				assert.True(t, dispatch.IsUnsupported(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStandard_Handle_Success(t *testing.T) {
	var receivedUA string
	var receivedHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		receivedHeader = r.Header.Get("X-Custom")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "hello")
	}))
	defer server.Close()

	h := NewStandard()
	defer h.Close()

	req := prepare(t, &request.Request{
		URL:    server.URL,
		Header: http.Header{"X-Custom": {"custom-value"}},
	})

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, server.URL, resp.URL)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	// カスタムヘッダーが透過され、User-Agent はデフォルト値で補完される
	assert.Equal(t, "custom-value", receivedHeader)
	assert.Equal(t, DefaultUserAgent, receivedUA)
}

func TestStandard_Handle_PostBody(t *testing.T) {
	var receivedBody []byte
	var receivedMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	h := NewStandard()
	defer h.Close()

	req := prepare(t, &request.Request{
		URL:    server.URL,
		Method: http.MethodPost,
		Body:   []byte(`{"key":"value"}`),
	})

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	defer resp.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, http.MethodPost, receivedMethod)
	assert.Equal(t, `{"key":"value"}`, string(receivedBody))
}

func TestStandard_Handle_ConnectionFailure(t *testing.T) {
	// 接続先を即座に閉じて到達不能にする
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	h := NewStandard()
	defer h.Close()

	req := prepare(t, &request.Request{URL: server.URL})

	resp, err := h.Handle(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, resp)
	// 受理済みリクエストの転送失敗は確定的エラーとして報告される
	assert.True(t, dispatch.IsRequestError(err))
	assert.Contains(t, err.Error(), "HTTPリクエストに失敗しました")
}

func TestStandard_Handle_RetryOnTransientError(t *testing.T) {
	// 最初の2回は接続を強制切断し、3回目で正常応答を返すサーバー
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			hijacker, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hijacker.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer server.Close()

	h := NewStandard(WithRetry(retry.Config{
		MaxRetries:      3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
	}))
	defer h.Close()

	req := prepare(t, &request.Request{URL: server.URL})

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	defer resp.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestStandard_TransportFor(t *testing.T) {
	h := NewStandard()

	t.Run("直接通信は共有トランスポートを返す", func(t *testing.T) {
		req := prepare(t, &request.Request{URL: "https://example.com"})
		transport, err := h.transportFor(req)
		require.NoError(t, err)
		assert.Same(t, h.base, transport)
	})

	t.Run("プロキシ経由は複製を構成する", func(t *testing.T) {
		req := prepare(t, &request.Request{
			URL:     "https://example.com",
			Proxies: map[string]string{"https": "http://proxy:8080"},
		})
		transport, err := h.transportFor(req)
		require.NoError(t, err)
		assert.NotSame(t, h.base, transport)
		assert.NotNil(t, transport.Proxy)
	})

	t.Run("insecure_tlsは証明書検証をスキップする複製を構成する", func(t *testing.T) {
		req := prepare(t, &request.Request{
			URL:        "https://example.com",
			Extensions: map[string]any{ExtInsecureTLS: true},
		})
		transport, err := h.transportFor(req)
		require.NoError(t, err)
		assert.NotSame(t, h.base, transport)
		require.NotNil(t, transport.TLSClientConfig)
		assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	})
}

func TestIsTransientTransferError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nilはリトライしない",
			err:      nil,
			expected: false,
		},
		{
			name:     "コンテキストキャンセルはリトライしない",
			err:      &url.Error{Op: "Get", URL: "https://example.com", Err: context.Canceled},
			expected: false,
		},
		{
			name:     "コンテキストタイムアウトはリトライしない",
			err:      &url.Error{Op: "Get", URL: "https://example.com", Err: context.DeadlineExceeded},
			expected: false,
		},
		{
			name:     "ネットワーク層のエラーはリトライする",
			err:      &url.Error{Op: "Get", URL: "https://example.com", Err: io.EOF},
			expected: true,
		},
		{
			name:     "転送以外のエラーはリトライしない",
			err:      errors.New("リクエスト構築エラー"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isTransientTransferError(tt.err))
		})
	}
}
