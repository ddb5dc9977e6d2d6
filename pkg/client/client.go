package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shouni/go-net-dispatch/pkg/request"
)

// ----------------------------------------------------------------------
// 定数とインターフェース
// ----------------------------------------------------------------------

const (
	// DefaultHTTPTimeout は、デフォルトのHTTPタイムアウトです。
	DefaultHTTPTimeout = 10 * time.Second

	// MaxBodySize は、レスポンスボディの最大読み込みサイズです (10MB)。
	MaxBodySize = int64(10 * 1024 * 1024)

	// エラーメッセージに含めるボディの最大長
	errorBodyLimit = 1024
)

// Sender は、dispatch.Director と互換性のあるリクエスト送信の
// インターフェースです。Client はこの抽象にのみ依存します。
type Sender interface {
	Send(ctx context.Context, req *request.Request) (*request.Response, error)
}

// ----------------------------------------------------------------------
// エラー型
// ----------------------------------------------------------------------

// HTTPStatusError は、2xx以外のステータスコードで完了した転送を示す
// カスタムエラー型です。
type HTTPStatusError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d, ボディなし", e.StatusCode)
	}
	body := string(e.Body)
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit] + "..."
	}
	return fmt.Sprintf("HTTPステータスエラー: ステータスコード %d, ボディ: %s", e.StatusCode, strings.TrimSpace(body))
}

// IsHTTPStatusError は、与えられたエラーがステータスコード起因のエラーで
// あるかを判定します。
func IsHTTPStatusError(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr)
}

// ----------------------------------------------------------------------
// 設定とコンストラクタ
// ----------------------------------------------------------------------

// Client は、Director を抽出器向けの Fetcher インターフェース群
// (FetchBytes / FetchDocument / PostJSONAndFetchBytes) に適合させる
// ブリッジです。
type Client struct {
	sender  Sender
	timeout time.Duration
}

// Option は Client の設定を行うための関数型です。
type Option func(*Client)

// WithTimeout は、このクライアント経由のリクエストのタイムアウトを
// 設定します。
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New は、新しい Client を生成します。
func New(sender Sender, options ...Option) (*Client, error) {
	if sender == nil {
		return nil, fmt.Errorf("client.New: Sender cannot be nil")
	}
	c := &Client{
		sender:  sender,
		timeout: DefaultHTTPTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// ----------------------------------------------------------------------
// フェッチ操作
// ----------------------------------------------------------------------

// FetchBytes は、URLからコンテンツをフェッチし、生のバイト配列として
// 返します。2xx以外のステータスは HTTPStatusError として報告されます。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.sender.Send(ctx, &request.Request{
		URL:     url,
		Method:  http.MethodGet,
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました (URL: %s): %w", url, err)
	}
	defer resp.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return HandleLimitedResponse(resp, MaxBodySize)
}

// FetchDocument は、URLからHTMLを取得し、goquery.Document を返します。
func (c *Client) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := c.sender.Send(ctx, &request.Request{
		URL:     url,
		Method:  http.MethodGet,
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました (URL: %s): %w", url, err)
	}
	defer resp.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

// PostJSONAndFetchBytes は、指定されたデータをJSONとしてPOSTし、
// レスポンスボディをバイト配列として返します。
func (c *Client) PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error) {
	requestBody, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("JSONデータのシリアライズに失敗しました: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	resp, err := c.sender.Send(ctx, &request.Request{
		URL:     url,
		Method:  http.MethodPost,
		Header:  header,
		Body:    requestBody,
		Timeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("POSTリクエストに失敗しました (URL: %s): %w", url, err)
	}
	defer resp.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return HandleLimitedResponse(resp, MaxBodySize)
}

// ----------------------------------------------------------------------
// ヘルパー関数
// ----------------------------------------------------------------------

// HandleLimitedResponse は、レスポンスボディを最大サイズに制限して
// 読み込みます。制限を超えるボディはエラーになります。
func HandleLimitedResponse(resp *request.Response, limit int64) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, limit+1)
	bodyBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}
	if int64(len(bodyBytes)) > limit {
		return nil, fmt.Errorf("レスポンスボディが最大サイズ (%dバイト) を超えました", limit)
	}
	return bodyBytes, nil
}

// checkStatus は、レスポンスのステータスコードを評価します。
// 2xx以外の場合、制限付きで読み込んだボディとともに HTTPStatusError を
// 返します。
func checkStatus(resp *request.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// 注意: エラー報告用にボディを読み込むが、Close の責務は呼び出し元が持つ。
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(errorBodyLimit)+1))
	return &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
	}
}
