package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/net/proxy"

	"github.com/shouni/go-net-dispatch/pkg/dispatch"
	"github.com/shouni/go-net-dispatch/pkg/request"
)

// KindSocks は、SOCKS5ハンドラのカテゴリタグです。
const KindSocks = "socks"

// ----------------------------------------------------------------------
// SOCKS5 ハンドラ
// ----------------------------------------------------------------------

// Socks は、socks5 プロキシ経由のリクエストだけを受理する狭い能力の
// ハンドラです。標準ハンドラより後に登録することで、socks5 プロキシ付きの
// リクエストのみを横取りし、それ以外は標準ハンドラへフォールスルーさせる
// 層構成を実現します。
type Socks struct {
	mu         sync.Mutex
	transports map[string]*http.Transport // プロキシアドレスごとのプール
}

// NewSocks は、新しいSOCKS5ハンドラを生成します。
func NewSocks() *Socks {
	return &Socks{
		transports: make(map[string]*http.Transport),
	}
}

// Name は、診断用の表示名を返します。
func (h *Socks) Name() string { return "socks5" }

// Kind は、レジストリのカテゴリタグを返します。
func (h *Socks) Kind() string { return KindSocks }

// CanHandle は、リクエストが socks5 プロキシを経由する場合にのみ受理します。
func (h *Socks) CanHandle(req *request.Prepared) error {
	scheme := req.URL.Scheme
	if scheme != "http" && scheme != "https" {
		return dispatch.Unsupported(h, "未対応のURLスキームです: %q", scheme)
	}

	raw, ok := req.ProxyFor(scheme)
	if !ok {
		return dispatch.Unsupported(h, "socks5プロキシが指定されていません")
	}
	proxyURL, err := url.Parse(raw)
	if err != nil {
		return dispatch.Unsupported(h, "プロキシURLをパースできません: %q", raw)
	}
	if proxyURL.Scheme != "socks5" {
		return dispatch.Unsupported(h, "socks5以外のプロキシスキームです: %q", proxyURL.Scheme)
	}

	if len(req.Extensions) > 0 {
		for key := range req.Extensions {
			return dispatch.Unsupported(h, "未対応の拡張オプションです: %q", key)
		}
	}
	return nil
}

// Handle は、SOCKS5ダイヤラー経由で実際の転送を実行します。
func (h *Socks) Handle(ctx context.Context, req *request.Prepared) (*request.Response, error) {
	raw, _ := req.ProxyFor(req.URL.Scheme)
	proxyURL, err := url.Parse(raw)
	if err != nil {
		return nil, dispatch.NewRequestError(fmt.Sprintf("プロキシURLのパースエラー (%s)", raw), err)
	}

	transport, err := h.transportFor(proxyURL)
	if err != nil {
		return nil, dispatch.NewRequestError("SOCKS5トランスポートの構成に失敗しました", err)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   req.Timeout,
	}

	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, dispatch.NewRequestError("HTTPリクエストの構築に失敗しました", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, dispatch.NewRequestError(fmt.Sprintf("SOCKS5経由のHTTPリクエストに失敗しました (URL: %s)", req.URL), err)
	}
	return convertResponse(resp), nil
}

// Close は、プロキシごとにプールされたアイドル接続をすべて解放します。
func (h *Socks) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, transport := range h.transports {
		transport.CloseIdleConnections()
	}
	h.transports = make(map[string]*http.Transport)
	return nil
}

// transportFor は、プロキシアドレスごとのプールされたトランスポートを
// 返します。未知のアドレスに対しては SOCKS5 ダイヤラーを構築します。
func (h *Socks) transportFor(proxyURL *url.URL) (*http.Transport, error) {
	key := proxyURL.Host

	h.mu.Lock()
	defer h.mu.Unlock()

	if transport, ok := h.transports[key]; ok {
		return transport, nil
	}

	var auth *proxy.Auth
	if user := proxyURL.User; user != nil {
		password, _ := user.Password()
		auth = &proxy.Auth{User: user.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("SOCKS5ダイヤラーの構築エラー (%s): %w", proxyURL.Host, err)
	}

	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
				return contextDialer.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}
	h.transports[key] = transport
	return transport, nil
}
