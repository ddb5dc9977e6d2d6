package request

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ----------------------------------------------------------------------
// 準備済みリクエストの導出
// ----------------------------------------------------------------------

// Prepared は、プロセス全体のデフォルトをマージ済みの、実際にハンドラへ
// ディスパッチされるリクエスト形式です。元の Request とはデータを共有しない
// 深いコピーであり、ディスパッチ中は読み取り専用として扱わなければなりません。
type Prepared struct {
	URL        *url.URL
	Method     string
	Header     http.Header
	Body       []byte
	Timeout    time.Duration
	Proxies    map[string]string
	Extensions map[string]any
}

// Prepare は、リクエストにプロセス全体のデフォルトをマージし、準備済みの
// コピーを導出します。ネットワーク処理は一切行いません。
// マージ規則:
//   - ヘッダー: デフォルトを基礎とし、リクエスト固有のヘッダーが
//     大文字小文字を区別しないキー衝突時に上書きする
//   - タイムアウト: リクエスト値が設定されていれば優先、なければデフォルト
//   - プロキシマップ: リクエスト値が空でなければ優先、空ならデフォルト
func Prepare(req *Request, defaults Defaults) (*Prepared, error) {
	if req == nil {
		return nil, fmt.Errorf("リクエストが nil です")
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("対象URLのパースエラー (URL: %s): %w", req.URL, err)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}

	proxies := req.Proxies
	if len(proxies) == 0 {
		proxies = defaults.Proxies
	}

	return &Prepared{
		URL:        target,
		Method:     method,
		Header:     mergeHeader(defaults.Header, req.Header),
		Body:       cloneBytes(req.Body),
		Timeout:    timeout,
		Proxies:    cloneStringMap(proxies),
		Extensions: cloneExtensions(req.Extensions),
	}, nil
}

// ProxyFor は、対象URLのスキームに対応するプロキシURLを返します。
// スキーム固有のエントリが優先され、なければ "all" エントリが使用されます。
func (p *Prepared) ProxyFor(scheme string) (string, bool) {
	if v, ok := p.Proxies[scheme]; ok && v != "" {
		return v, true
	}
	if v, ok := p.Proxies["all"]; ok && v != "" {
		return v, true
	}
	return "", false
}

// mergeHeader は、デフォルトヘッダーを基礎にリクエストヘッダーを上書きした
// 新しいヘッダーマップを返します。キーは正規化されるため、大文字小文字の
// 違いは衝突として扱われます。
func mergeHeader(defaults, overrides http.Header) http.Header {
	merged := make(http.Header, len(defaults)+len(overrides))
	for key, values := range defaults {
		merged[http.CanonicalHeaderKey(key)] = cloneStrings(values)
	}
	for key, values := range overrides {
		merged[http.CanonicalHeaderKey(key)] = cloneStrings(values)
	}
	return merged
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cloned := make(map[string]string, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

func cloneExtensions(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cloned := make(map[string]any, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}
