package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-net-dispatch/pkg/request"
)

// ----------------------------------------------------------------------
// モック定義
// ----------------------------------------------------------------------

// MockSender は Sender インターフェースのモックです。
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, req *request.Request) (*request.Response, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*request.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

// newResponse は、テスト用のレスポンスを構築するヘルパーです。
func newResponse(statusCode int, body string) *request.Response {
	return &request.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// ----------------------------------------------------------------------
// テスト
// ----------------------------------------------------------------------

func TestNew(t *testing.T) {
	t.Run("nilのSenderはエラー", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("WithTimeoutが反映される", func(t *testing.T) {
		c, err := New(new(MockSender), WithTimeout(3*time.Second))
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestClient_FetchBytes(t *testing.T) {
	const targetURL = "https://example.com/data"

	t.Run("正常系", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.MatchedBy(func(req *request.Request) bool {
			return req.URL == targetURL && req.Method == http.MethodGet
		})).Return(newResponse(http.StatusOK, "response-data"), nil)

		c, err := New(sender)
		require.NoError(t, err)

		data, err := c.FetchBytes(context.Background(), targetURL)
		require.NoError(t, err)
		assert.Equal(t, "response-data", string(data))
		sender.AssertExpectations(t)
	})

	t.Run("転送エラーはラップされる", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).
			Return(nil, assert.AnError)

		c, err := New(sender)
		require.NoError(t, err)

		_, err = c.FetchBytes(context.Background(), targetURL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "コンテンツの取得に失敗しました")
	})

	t.Run("2xx以外はHTTPStatusErrorになる", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).
			Return(newResponse(http.StatusNotFound, "not found page"), nil)

		c, err := New(sender)
		require.NoError(t, err)

		_, err = c.FetchBytes(context.Background(), targetURL)
		require.Error(t, err)
		assert.True(t, IsHTTPStatusError(err))

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Contains(t, statusErr.Error(), "404")
		assert.Contains(t, statusErr.Error(), "not found page")
	})

	t.Run("エラーメッセージのボディは最大長で切り詰められる", func(t *testing.T) {
		longBody := strings.Repeat("x", errorBodyLimit+100)
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).
			Return(newResponse(http.StatusInternalServerError, longBody), nil)

		c, err := New(sender)
		require.NoError(t, err)

		_, err = c.FetchBytes(context.Background(), targetURL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "...")
		assert.Less(t, len(err.Error()), len(longBody))
	})
}

func TestClient_FetchDocument(t *testing.T) {
	const targetURL = "https://example.com/page"

	t.Run("正常系", func(t *testing.T) {
		html := `<html><body><h1>見出し</h1><p>本文テキスト</p></body></html>`
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).
			Return(newResponse(http.StatusOK, html), nil)

		c, err := New(sender)
		require.NoError(t, err)

		doc, err := c.FetchDocument(context.Background(), targetURL)
		require.NoError(t, err)
		assert.Equal(t, "見出し", doc.Find("h1").Text())
	})

	t.Run("ステータスエラー", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).
			Return(newResponse(http.StatusForbidden, ""), nil)

		c, err := New(sender)
		require.NoError(t, err)

		_, err = c.FetchDocument(context.Background(), targetURL)
		require.Error(t, err)
		assert.True(t, IsHTTPStatusError(err))
	})
}

func TestClient_PostJSONAndFetchBytes(t *testing.T) {
	const targetURL = "https://example.com/api"

	t.Run("正常系", func(t *testing.T) {
		payload := map[string]string{"key": "value"}

		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.MatchedBy(func(req *request.Request) bool {
			return req.Method == http.MethodPost &&
				req.Header.Get("Content-Type") == "application/json" &&
				string(req.Body) == `{"key":"value"}`
		})).Return(newResponse(http.StatusOK, `{"result":"ok"}`), nil)

		c, err := New(sender)
		require.NoError(t, err)

		data, err := c.PostJSONAndFetchBytes(context.Background(), targetURL, payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{"result":"ok"}`, string(data))
		sender.AssertExpectations(t)
	})

	t.Run("シリアライズ不能なデータはエラー", func(t *testing.T) {
		c, err := New(new(MockSender))
		require.NoError(t, err)

		_, err = c.PostJSONAndFetchBytes(context.Background(), targetURL, make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSONデータのシリアライズに失敗しました")
	})
}

func TestHandleLimitedResponse(t *testing.T) {
	t.Run("制限内のボディはそのまま返る", func(t *testing.T) {
		resp := newResponse(http.StatusOK, "small-body")
		data, err := HandleLimitedResponse(resp, 1024)
		require.NoError(t, err)
		assert.Equal(t, "small-body", string(data))
	})

	t.Run("制限を超えるボディはエラーになる", func(t *testing.T) {
		resp := newResponse(http.StatusOK, strings.Repeat("x", 100))
		_, err := HandleLimitedResponse(resp, 50)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "最大サイズ")
	})
}
