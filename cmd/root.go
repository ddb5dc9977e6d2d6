package cmd

import (
	"io"
	"log"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-net-dispatch/internal/pipeline"
)

// --- グローバル定数 ---

const (
	appName           = "net-dispatch" // アプリケーション名
	defaultTimeoutSec = 10             // 秒
	defaultMaxRetries = 3              // デフォルトのリトライ回数

	// 全体処理のタイムアウト定数 (parseCmd, scraperCmd で利用)
	DefaultOverallTimeout = 20 * time.Second
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout タイムアウト
	MaxRetries int    // --max-retries リトライ回数
	Proxy      string // --proxy 全スキーム共通のプロキシURL
	Socks5     string // --socks5 SOCKS5プロキシのアドレス (host:port)
}

var Flags AppFlags              // アプリケーション固有フラグにアクセスするためのグローバル変数
var globalStack *pipeline.Stack // 共有ディスパッチスタック

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		defaultTimeoutSec,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxRetries,
		"max-retries",
		defaultMaxRetries,
		"HTTPリクエストのリトライ最大回数",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.Proxy,
		"proxy",
		"",
		"全スキームに適用するプロキシURL (例: http://proxy.example:8080)",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.Socks5,
		"socks5",
		"",
		"SOCKS5プロキシのアドレス (例: 127.0.0.1:1080)",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {

	timeout := time.Duration(Flags.TimeoutSec) * time.Second

	// プロキシマップの組み立て: --socks5 が --proxy より優先される
	proxies := make(map[string]string)
	if Flags.Proxy != "" {
		proxies["all"] = Flags.Proxy
	}
	if Flags.Socks5 != "" {
		proxies["all"] = "socks5://" + Flags.Socks5
	}

	// ディスパッチの診断ログは verbose 時のみ出力する
	dispatchLogger := log.New(io.Discard, "", 0)
	if clibase.Flags.Verbose {
		dispatchLogger = log.Default()
		log.Printf("HTTPクライアントのタイムアウトを設定しました (Timeout: %s)。", timeout)
		log.Printf("HTTPクライアントのリトライ回数を設定しました (MaxRetries: %d)。", Flags.MaxRetries)
		if len(proxies) > 0 {
			log.Printf("プロキシマップを設定しました (%v)。", proxies)
		}
	}

	// 共有ディスパッチスタックの初期化
	stack, err := pipeline.Build(pipeline.Config{
		Timeout:    timeout,
		MaxRetries: uint64(Flags.MaxRetries),
		Proxies:    proxies,
		Logger:     dispatchLogger,
	})
	if err != nil {
		return err
	}
	globalStack = stack

	return nil
}

// GetGlobalStack は、初期化された共有ディスパッチスタックを返す関数 (DIの代わり)
func GetGlobalStack() *pipeline.Stack {
	return globalStack
}

// --- エントリポイント ---

// Execute は、アプリケーションを実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	// clibase.Execute を使用して、アプリケーションの初期化、フラグ設定、サブコマンドの登録を一括で行う
	clibase.Execute(
		appName,
		addAppPersistentFlags, // カスタムフラグの追加コールバック
		initAppPreRunE,        // カスタムPersistentPreRunEコールバック
		// サブコマンドのリスト
		fetchCmd,
		extractCmd,
		parseCmd,
		scraperCmd,
	)
	// clibase.Execute() の中で os.Exit(1) が処理されるため、ここでは不要
}
