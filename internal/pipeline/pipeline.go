package pipeline

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shouni/go-net-dispatch/pkg/client"
	"github.com/shouni/go-net-dispatch/pkg/dispatch"
	"github.com/shouni/go-net-dispatch/pkg/handlers"
	"github.com/shouni/go-net-dispatch/pkg/request"
	"github.com/shouni/go-net-dispatch/pkg/retry"
)

// Config は、ディスパッチスタックの組み立てに必要なプロセス全体の設定です。
type Config struct {
	Timeout    time.Duration     // プロセス全体のデフォルトタイムアウト
	MaxRetries uint64            // 標準ハンドラのリトライ回数 (0で無効)
	Proxies    map[string]string // プロセス全体のデフォルトプロキシマップ
	Header     http.Header       // プロセス全体のデフォルトヘッダー
	Logger     dispatch.Logger   // 診断イベントの出力先 (nilでデフォルト)
}

// Stack は、組み立て済みのディスパッチスタック一式です。
type Stack struct {
	Registry *dispatch.Registry
	Director *dispatch.Director
	Client   *client.Client
}

// Build は、設定からレジストリ・ディレクター・クライアントを組み立てます。
// 組み込みハンドラの登録順は [標準, SOCKS5] であり、socks5 プロキシが
// 設定されている場合は SOCKS5 ハンドラが後から登録されて最優先になります。
func Build(cfg Config) (*Stack, error) {
	registry := dispatch.NewRegistry()

	var stdOptions []handlers.StandardOption
	if cfg.MaxRetries > 0 {
		retryCfg := retry.DefaultConfig()
		retryCfg.MaxRetries = cfg.MaxRetries
		stdOptions = append(stdOptions, handlers.WithRetry(retryCfg))
	}
	registry.AddHandler(handlers.NewStandard(stdOptions...))

	// socks5 プロキシが設定されている場合のみ、専用ハンドラを上に重ねる。
	// socks5 以外のリクエストは辞退され、標準ハンドラへフォールスルーする。
	if hasSocksProxy(cfg.Proxies) {
		registry.AddHandler(handlers.NewSocks())
	}

	defaults := request.Defaults{
		Header:  cfg.Header,
		Timeout: cfg.Timeout,
		Proxies: cfg.Proxies,
	}

	var options []dispatch.Option
	if cfg.Logger != nil {
		options = append(options, dispatch.WithLogger(cfg.Logger))
	}
	director, err := dispatch.NewDirector(registry, dispatch.StaticDefaults(defaults), options...)
	if err != nil {
		return nil, fmt.Errorf("Directorの初期化エラー: %w", err)
	}

	webClient, err := client.New(director, client.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("Clientの初期化エラー: %w", err)
	}

	return &Stack{
		Registry: registry,
		Director: director,
		Client:   webClient,
	}, nil
}

// Close は、登録されているすべてのハンドラのリソースを解放します。
func (s *Stack) Close() error {
	return s.Registry.Close()
}

// hasSocksProxy は、プロキシマップに socks5 エントリが含まれるかを判定します。
func hasSocksProxy(proxies map[string]string) bool {
	for _, raw := range proxies {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if proxyURL.Scheme == "socks5" {
			return true
		}
	}
	return false
}
