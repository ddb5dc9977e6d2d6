package dispatch

import (
	"errors"
	"sync"
)

// ----------------------------------------------------------------------
// ハンドラレジストリ
// ----------------------------------------------------------------------

// Registry は、登録されたハンドラの順序付きコレクションです。挿入順が
// 優先度を定義します (最後に挿入されたものが最高優先度、ディスパッチは
// 逆挿入順に走査します)。同一インスタンスの重複登録はありません。
//
// レジストリは共有される可変状態です。Add/Remove/Replace は、Send 中の
// レジストリ走査と相互排他になるよう RWMutex で保護されます。
type Registry struct {
	mu       sync.RWMutex
	handlers []RequestHandler
	closed   bool
}

// NewRegistry は、空のレジストリを生成します。
func NewRegistry() *Registry {
	return &Registry{}
}

// AddHandler は、ハンドラを順序列の末尾 (= 最高優先度スロット) に追加します。
// 同一インスタンスが既に登録されている場合は no-op であり、既存の位置が
// 保持されます (再追加は優先度を更新しません)。
func (r *Registry) AddHandler(h RequestHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.handlers {
		if existing == h {
			return
		}
	}
	r.handlers = append(r.handlers, h)
}

// RemoveHandler は、指定されたインスタンスと同一のエントリをすべて
// 除去します。
func (r *Registry) RemoveHandler(h RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.handlers[:0]
	for _, existing := range r.handlers {
		if existing != h {
			kept = append(kept, existing)
		}
	}
	r.handlers = kept
}

// RemoveKind は、カテゴリタグが一致するエントリをすべて除去します。
func (r *Registry) RemoveKind(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.handlers[:0]
	for _, existing := range r.handlers {
		if existing.Kind() != kind {
			kept = append(kept, existing)
		}
	}
	r.handlers = kept
}

// ReplaceHandler は RemoveHandler の後に AddHandler を行い、ハンドラを
// 最高優先度スロットへ強制します。登録済みインスタンスに対して呼び出しても
// 重複エントリは作られません。
func (r *Registry) ReplaceHandler(h RequestHandler) {
	r.RemoveHandler(h)
	r.AddHandler(h)
}

// Handlers は、登録順のハンドラ列のスナップショットを返します。
// 返されたスライスはレジストリと共有されないため、走査中の変更操作に
// 影響されません。
func (r *Registry) Handlers() []RequestHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RequestHandler(nil), r.handlers...)
}

// HandlersByKind は、カテゴリタグが一致する登録済みハンドラを登録順で
// 返します。特定のトランスポートだけを再設定・検査したい呼び出し側が
// 使用します。
func (r *Registry) HandlersByKind(kind string) []RequestHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []RequestHandler
	for _, h := range r.handlers {
		if h.Kind() == kind {
			matched = append(matched, h)
		}
	}
	return matched
}

// Len は、登録済みハンドラ数を返します。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Close は、登録されているすべてのハンドラのリソースを解放します。
// プロセスシャットダウン時に一度呼び出されることを想定していますが、
// 二重呼び出しにも安全です (2回目以降は no-op)。各ハンドラの Close の
// エラーは結合して返されます。
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, h := range r.handlers {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.handlers = nil
	return errors.Join(errs...)
}
