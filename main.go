package main

import (
	"github.com/shouni/go-net-dispatch/cmd"
)

// main 関数は、CLIのエントリポイントです。エラーハンドリングと終了コードの
// 処理は cmd.Execute (clibase) に委譲します。
func main() {
	cmd.Execute()
}
