package handlers

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shouni/go-net-dispatch/pkg/dispatch"
	"github.com/shouni/go-net-dispatch/pkg/request"
	"github.com/shouni/go-net-dispatch/pkg/retry"
)

const (
	// KindStandard は、標準ハンドラのカテゴリタグです。
	KindStandard = "standard"

	// サイトからのブロックを避けるためのUser-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

	// 接続プール関連の定数
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	idleConnTimeout     = 90 * time.Second
)

// ExtInsecureTLS は、TLS証明書検証をスキップする拡張オプションのキーです。
// 値は bool で指定します。
const ExtInsecureTLS = "insecure_tls"

// standardExtensions は、標準ハンドラが理解する拡張オプションのキー一覧です。
// ここにないキーを持つリクエストは辞退されます。
var standardExtensions = map[string]bool{
	ExtInsecureTLS: true,
}

// ----------------------------------------------------------------------
// 標準ハンドラ (net/http ベース)
// ----------------------------------------------------------------------

// Standard は、net/http のプールされたトランスポートの上に構築された
// 汎用のリクエストハンドラです。http/https の対象スキームと、
// http/https のプロキシスキームをサポートします (socks5 プロキシは
// Socks ハンドラの担当として辞退します)。
type Standard struct {
	base     *http.Transport
	retryCfg *retry.Config
}

// StandardOption は Standard の設定を行うための関数型です。
type StandardOption func(*Standard)

// WithRetry は、一時的な転送エラーに対する指数バックオフリトライを
// 有効にします。
func WithRetry(cfg retry.Config) StandardOption {
	return func(h *Standard) {
		h.retryCfg = &cfg
	}
}

// NewStandard は、新しい標準ハンドラを生成します。
func NewStandard(options ...StandardOption) *Standard {
	h := &Standard{
		base: &http.Transport{
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
		},
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Name は、診断用の表示名を返します。
func (h *Standard) Name() string { return "net/http" }

// Kind は、レジストリのカテゴリタグを返します。
func (h *Standard) Kind() string { return KindStandard }

// CanHandle は、対象スキーム・プロキシスキーム・拡張オプションを検査します。
// ネットワークI/Oは行いません。
func (h *Standard) CanHandle(req *request.Prepared) error {
	scheme := req.URL.Scheme
	if scheme != "http" && scheme != "https" {
		return dispatch.Unsupported(h, "未対応のURLスキームです: %q", scheme)
	}

	if raw, ok := req.ProxyFor(scheme); ok {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return dispatch.Unsupported(h, "プロキシURLをパースできません: %q", raw)
		}
		if proxyURL.Scheme != "http" && proxyURL.Scheme != "https" {
			return dispatch.Unsupported(h, "未対応のプロキシスキームです: %q", proxyURL.Scheme)
		}
	}

	for key := range req.Extensions {
		if !standardExtensions[key] {
			return dispatch.Unsupported(h, "未対応の拡張オプションです: %q", key)
		}
	}
	return nil
}

// Handle は、net/http で実際の転送を実行します。リクエストのタイムアウトは
// ボディの読み取りまで含めて http.Client.Timeout として適用されます。
func (h *Standard) Handle(ctx context.Context, req *request.Prepared) (*request.Response, error) {
	transport, err := h.transportFor(req)
	if err != nil {
		return nil, dispatch.NewRequestError("トランスポートの構成に失敗しました", err)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   req.Timeout,
	}

	var resp *http.Response
	doOnce := func() error {
		// リトライのたびにボディリーダーを作り直す必要があるため、
		// http.Request は試行ごとに構築する。
		httpReq, buildErr := buildHTTPRequest(ctx, req)
		if buildErr != nil {
			return buildErr
		}
		var doErr error
		resp, doErr = client.Do(httpReq)
		return doErr
	}

	if h.retryCfg != nil {
		opName := fmt.Sprintf("URL(%s)への転送", req.URL)
		err = retry.Do(ctx, *h.retryCfg, opName, doOnce, isTransientTransferError)
	} else {
		err = doOnce()
	}
	if err != nil {
		// 受理済みリクエストの転送失敗は確定的エラーとして報告する
		return nil, dispatch.NewRequestError(fmt.Sprintf("HTTPリクエストに失敗しました (URL: %s)", req.URL), err)
	}

	return convertResponse(resp), nil
}

// Close は、プールされたアイドル接続を解放します。
func (h *Standard) Close() error {
	h.base.CloseIdleConnections()
	return nil
}

// transportFor は、リクエストのプロキシ設定と拡張オプションに応じた
// トランスポートを返します。直接通信は共有のプールされたトランスポートを
// 使用し、プロキシ経由とTLS設定変更時のみ複製を構成します。
func (h *Standard) transportFor(req *request.Prepared) (*http.Transport, error) {
	raw, hasProxy := req.ProxyFor(req.URL.Scheme)
	insecure, _ := req.Extensions[ExtInsecureTLS].(bool)

	if !hasProxy && !insecure {
		return h.base, nil
	}

	transport := h.base.Clone()
	if hasProxy {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("プロキシURLのパースエラー (%s): %w", raw, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	if insecure {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
	return transport, nil
}

// ----------------------------------------------------------------------
// 共通ヘルパー (Socks ハンドラと共用)
// ----------------------------------------------------------------------

// buildHTTPRequest は、準備済みリクエストから http.Request を構築します。
func buildHTTPRequest(ctx context.Context, req *request.Prepared) (*http.Request, error) {
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの構築に失敗しました: %w", err)
	}

	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", DefaultUserAgent)
	}
	return httpReq, nil
}

// convertResponse は、http.Response をディスパッチ層の Response に
// 変換します。ボディストリームの所有権はそのまま呼び出し側へ渡ります。
func convertResponse(resp *http.Response) *request.Response {
	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &request.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
		URL:        finalURL,
	}
}

// isTransientTransferError は、転送エラーがリトライ対象かどうかを判定します。
// コンテキストのキャンセル/タイムアウトはリトライしません。接続リセットや
// EOF などのネットワーク層のエラーは一時的なものとして扱います。
func isTransientTransferError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
