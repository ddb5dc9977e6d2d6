package request

import (
	"net/http"
	"time"
)

// ----------------------------------------------------------------------
// リクエストモデル
// ----------------------------------------------------------------------

// Request は、送信するアウトバウンド呼び出しの記述です。
// 呼び出し側が構築し、Director に渡した後は変更してはいけません。
// ディスパッチには Prepare で導出された Prepared が使用されます。
type Request struct {
	URL    string      // 対象URL
	Method string      // HTTPメソッド。空の場合は GET として扱われます
	Header http.Header // リクエスト固有のヘッダー。デフォルトヘッダーより優先されます
	Body   []byte      // 省略可能なリクエストボディ

	// Timeout は、このリクエストのタイムアウトです。
	// ゼロの場合はプロセス全体のデフォルトタイムアウトが適用されます。
	Timeout time.Duration

	// Proxies は、URLスキームをキーとするプロキシマップです
	// (例: "https" -> "http://proxy.example:8080", "all" -> "socks5://127.0.0.1:1080")。
	// 空の場合はプロセス全体のデフォルトプロキシマップが適用されます。
	Proxies map[string]string

	// Extensions は、トランスポート固有の追加オプションを保持する不透明なバッグです。
	// 各ハンドラは、理解できないキーを含むリクエストを辞退します。
	Extensions map[string]any
}

// Defaults は、Director がマージ時に参照するプロセス全体のデフォルト値です。
// ホストの設定オブジェクトが所有する読み取り専用の供給源として扱われます。
type Defaults struct {
	Header  http.Header       // デフォルトヘッダー (リクエスト側のキー衝突時は上書きされる)
	Timeout time.Duration     // デフォルトタイムアウト
	Proxies map[string]string // デフォルトプロキシマップ
}
