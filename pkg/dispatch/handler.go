package dispatch

import (
	"context"

	"github.com/shouni/go-net-dispatch/pkg/request"
)

// ----------------------------------------------------------------------
// ハンドラ能力契約 (外部コラボレーターインターフェース)
// ----------------------------------------------------------------------

// RequestHandler は、リクエストの一部分を実行できるトランスポート実装です。
// 実装は、ホストプロセスが並列にリクエストを発行する場合に備えて、
// 並行的な Handle 呼び出しに対して安全でなければなりません。
type RequestHandler interface {
	// Name は、診断とレジストリ検索にのみ使用される安定した表示名を返します。
	Name() string

	// Kind は、レジストリのカテゴリ照合 (RemoveKind / HandlersByKind) に
	// 使用されるカテゴリタグを返します。
	Kind() string

	// CanHandle は、準備済みリクエストのある側面 (スキーム、プロキシ種別、
	// 必須オプション) をこのハンドラがサポートしない場合に
	// *UnsupportedRequestError を返す、高速で副作用のない検査です。
	// ネットワークI/Oを行ってはいけません。サポートする場合は nil を返します。
	CanHandle(req *request.Prepared) error

	// Handle は、実際の転送を実行します。ネットワーク処理の間、呼び出し元の
	// ゴルーチンをブロックすることがあります。呼び出し側が確定的とみなすべき
	// 失敗 (不正な対象、転送開始後の拒否など) には *RequestError を返し、
	// 想定外の内部エラーはラップせずそのまま返してください。Director が
	// 「予期しないフォールト」として分類します。
	Handle(ctx context.Context, req *request.Prepared) (*request.Response, error)

	// Close は、プールされた接続などのリソースを解放します。
	// Director のシャットダウン経路から一度だけ呼び出されます。
	Close() error
}
