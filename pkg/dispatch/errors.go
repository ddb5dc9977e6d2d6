package dispatch

import (
	"errors"
	"fmt"
)

// ----------------------------------------------------------------------
// エラー分類
// ----------------------------------------------------------------------

// UnsupportedRequestError は、ハンドラが「このリクエストは自分には
// 適していない」と辞退したことを示します。期待される非致命的な結果であり、
// Director は次のハンドラを試します。
type UnsupportedRequestError struct {
	Reason  string         // 人間可読の辞退理由
	Handler RequestHandler // 辞退したハンドラへの後方参照
}

func (e *UnsupportedRequestError) Error() string {
	return e.Reason
}

// Unsupported は、指定されたハンドラからの辞退エラーを生成します。
func Unsupported(h RequestHandler, format string, args ...any) *UnsupportedRequestError {
	return &UnsupportedRequestError{
		Reason:  fmt.Sprintf(format, args...),
		Handler: h,
	}
}

// IsUnsupported は、エラーが辞退 (UnsupportedRequestError) かどうかを
// 判定します。
func IsUnsupported(err error) bool {
	var unsupported *UnsupportedRequestError
	return errors.As(err, &unsupported)
}

// RequestError は、ハンドラが転送を試みて確定的に失敗したこと、または
// すべてのハンドラを使い果たしたことを示します。呼び出し側が観測する
// 唯一のエラー型です。
type RequestError struct {
	msg   string
	cause error
}

// NewRequestError は、新しい RequestError を生成します。cause は nil でも
// 構いません。
func NewRequestError(msg string, cause error) *RequestError {
	return &RequestError{msg: msg, cause: cause}
}

func (e *RequestError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *RequestError) Unwrap() error {
	return e.cause
}

// IsRequestError は、エラーが確定的な転送失敗 (RequestError) かどうかを
// 判定します。
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
