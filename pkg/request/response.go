package request

import (
	"io"
	"net/http"
)

// Response は、完了した転送のステータス・ヘッダー・ボディストリームへの
// ハンドルです。ハンドラが生成し、所有権は呼び出し側へ移ります。
// 呼び出し側は Body を最終的に Close する責務を負います。
type Response struct {
	StatusCode int           // HTTPステータスコード
	Status     string        // ステータス行のテキスト (例: "200 OK")
	Header     http.Header   // レスポンスヘッダー
	Body       io.ReadCloser // ハンドラが生成したボディストリーム
	URL        string        // 最終的に転送が行われたURL
}

// Close は、下層のボディストリームを解放します。Body が nil の場合は
// 何もしません。
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
