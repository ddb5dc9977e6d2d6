package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shouni/go-net-dispatch/pkg/request"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DI)
// ----------------------------------------------------------------------

// Logger は、非致命的な診断イベント (ハンドラの辞退、予期しないフォールト)
// の出力先です。ホストが独自の実装を注入できます。
type Logger interface {
	Printf(format string, v ...any)
}

// DefaultsSource は、プロセス全体のデフォルトヘッダー・タイムアウト・
// プロキシマップの読み取り専用の供給源です。Send 呼び出しごとに一度参照され、
// Director は呼び出しをまたいでキャッシュしません。
type DefaultsSource interface {
	RequestDefaults() request.Defaults
}

// StaticDefaults は、固定値の Defaults を DefaultsSource に適合させます。
type StaticDefaults request.Defaults

// RequestDefaults は DefaultsSource インターフェースを満たします。
func (s StaticDefaults) RequestDefaults() request.Defaults {
	return request.Defaults(s)
}

// ----------------------------------------------------------------------
// ディスパッチャー
// ----------------------------------------------------------------------

// Director は、抽象的なアウトバウンドリクエストを受け取り、登録済み
// ハンドラの順序付きチェーンを通してルーティングするディスパッチャーです。
// 呼び出し側 (抽出器など) は個々のハンドラを見ることはなく、常に Send を
// 経由します。
type Director struct {
	registry *Registry
	defaults DefaultsSource
	logger   Logger
}

// Option は Director の設定を行うための関数型です。
type Option func(*Director)

// WithLogger は、診断イベントの出力先を設定します。
func WithLogger(logger Logger) Option {
	return func(d *Director) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDirector は、新しい Director を生成します。defaults が nil の場合、
// デフォルト値のマージは行われません (ゼロ値が使用されます)。
func NewDirector(registry *Registry, defaults DefaultsSource, options ...Option) (*Director, error) {
	if registry == nil {
		return nil, fmt.Errorf("dispatch.NewDirector: Registry cannot be nil")
	}
	d := &Director{
		registry: registry,
		defaults: defaults,
		logger:   log.Default(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Registry は、ホストの起動・設定コードに公開されるハンドラレジストリを
// 返します。
func (d *Director) Registry() *Registry {
	return d.registry
}

// Close は、登録されているすべてのハンドラのリソースを解放します。
// 実行中の Send と並行して呼び出さないでください (呼び出し側がドレインの
// 責務を負います)。
func (d *Director) Close() error {
	return d.registry.Close()
}

// Send は、リクエストを適切なハンドラへ引き渡します。
//
// アルゴリズム:
//  1. レジストリが空なら即座に失敗する
//  2. プロセス全体のデフォルトをマージし、準備済みリクエストを導出する
//  3. 逆登録順 (最後に登録されたものが先) に各ハンドラへ能力交渉を行う:
//     辞退 → 理由を記録して次へ、実行失敗 (RequestError) → 即時伝播、
//     予期しないフォールト → 記録して次へ、成功 → Response を返す
//  4. 使い果たした場合、記録した辞退理由を文面ごとにまとめ、予期しない
//     フォールト数を添えて単一の RequestError として失敗する
func (d *Director) Send(ctx context.Context, req *request.Request) (*request.Response, error) {
	handlers := d.registry.Handlers()
	if len(handlers) == 0 {
		return nil, NewRequestError("リクエストハンドラが1つも設定されていません", nil)
	}

	prepared, err := d.prepare(req)
	if err != nil {
		return nil, NewRequestError("リクエストの準備に失敗しました", err)
	}

	var (
		unsupported []*UnsupportedRequestError
		unexpected  []error
	)

	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		d.logger.Printf("リクエストをハンドラ %q へ転送します", h.Name())

		if err := h.CanHandle(prepared); err != nil {
			var declination *UnsupportedRequestError
			if errors.As(err, &declination) {
				// 期待される辞退。理由を記録して次のハンドラを試す。
				d.logger.Printf("ハンドラ %q はこのリクエストを処理できません。別のハンドラを試します (理由: %s)", h.Name(), declination.Reason)
				unsupported = append(unsupported, declination)
				continue
			}
			// CanHandle からの辞退以外のエラーは予期しないフォールトとして扱う
			d.logger.Printf("ハンドラ %q の能力検査で予期しないエラーが発生しました: %v", h.Name(), err)
			unexpected = append(unexpected, err)
			continue
		}

		resp, err := d.handle(ctx, h, prepared)
		if err != nil {
			var reqErr *RequestError
			if errors.As(err, &reqErr) {
				// リクエストを受理したハンドラの実行失敗は確定的。
				// 以降のハンドラへのフォールバックは行わない。
				return nil, reqErr
			}
			// 予期しないフォールト。恒久的にルーティング不能とは信用せず、
			// 記録して残りのハンドラを試す。
			d.logger.Printf("ハンドラ %q から予期しないエラーが発生しました: %v", h.Name(), err)
			unexpected = append(unexpected, err)
			continue
		}

		return resp, nil
	}

	return nil, exhaustionError(unsupported, unexpected)
}

// prepare は、DefaultsSource を参照して準備済みリクエストを導出します。
func (d *Director) prepare(req *request.Request) (*request.Prepared, error) {
	var defaults request.Defaults
	if d.defaults != nil {
		defaults = d.defaults.RequestDefaults()
	}
	return request.Prepare(req, defaults)
}

// handle は、単一ハンドラの Handle を実行します。ハンドラ内部のパニックは
// 回復され、予期しないフォールトとして分類されるエラーに変換されます。
func (d *Director) handle(ctx context.Context, h RequestHandler, prepared *request.Prepared) (resp *request.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ハンドラ %q の内部でパニックが発生しました: %v", h.Name(), r)
		}
	}()
	return h.Handle(ctx, prepared)
}

// exhaustionError は、全ハンドラ使い果たし時の集約エラーを構築します。
// 辞退理由は文面ごとにまとめられ、同じ理由を返したハンドラ名が列挙されます。
func exhaustionError(unsupported []*UnsupportedRequestError, unexpected []error) *RequestError {
	var (
		order    []string
		byReason = make(map[string][]string)
	)
	for _, declination := range unsupported {
		if _, seen := byReason[declination.Reason]; !seen {
			order = append(order, declination.Reason)
		}
		name := "不明なハンドラ"
		if declination.Handler != nil {
			name = declination.Handler.Name()
		}
		byReason[declination.Reason] = append(byReason[declination.Reason], name)
	}

	reasons := make([]string, 0, len(order)+1)
	for _, reason := range order {
		reasons = append(reasons, fmt.Sprintf("%s (%s)", reason, strings.Join(byReason[reason], ", ")))
	}
	if len(unexpected) > 0 {
		reasons = append(reasons, fmt.Sprintf("予期しないエラー %d 件", len(unexpected)))
	}

	msg := "リクエストを処理できませんでした"
	if len(reasons) > 0 {
		msg += "。考えられる原因: " + strings.Join(reasons, ", ")
	}
	return NewRequestError(msg, nil)
}
