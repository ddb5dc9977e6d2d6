package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-net-dispatch/pkg/extract"
)

var rawUrl string

// runExtractionPipeline は、Webコンテンツの抽出を実行するメインロジックです。
// Goの慣習に従い、エラーを最後の戻り値にします。
func runExtractionPipeline(rawURL string, extractor *extract.Extractor, overallTimeout time.Duration) (text string, isBodyExtracted bool, err error) {
	// 1. 全体処理のコンテキストを設定
	// overallTimeout は、ネットワーク処理（リトライ含む）とHTMLパース全体をカバーする時間
	ctx, cancel := context.WithTimeout(context.Background(), overallTimeout)
	defer cancel()

	// 2. 抽出の実行
	text, isBodyExtracted, err = extractor.FetchAndExtractText(ctx, rawURL)
	if err != nil {
		// エラーのラッピング
		return "", false, fmt.Errorf("コンテンツ抽出エラー (URL: %s): %w", rawURL, err)
	}

	return text, isBodyExtracted, nil
}

var extractCmd = &cobra.Command{
	Use:   "extract [URL]",
	Short: "指定されたURLまたは標準入力からWebコンテンツのテキストを取得します",
	Long:  `指定されたURLまたは標準入力からWebコンテンツのテキストを取得します。取得はディスパッチ層の登録済みハンドラチェーンを経由します。`,
	RunE: func(cmd *cobra.Command, args []string) error {

		// overallTimeout の設定: クライアントタイムアウト (Flags.TimeoutSec) の2倍を全体のタイムアウトとします。
		overallTimeout := time.Duration(Flags.TimeoutSec*2) * time.Second
		if Flags.TimeoutSec == 0 {
			overallTimeout = DefaultOverallTimeout
		}

		// 1. 処理対象URLの決定 (フラグ優先)
		urlToProcess := rawUrl
		if urlToProcess == "" {
			log.Println("URLが指定されていないため、標準入力からURLを読み込みます...")
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("処理するURLを入力してください: ")

			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("標準入力の読み取りエラー: %w", err)
				}
				return fmt.Errorf("URLが入力されていません")
			}
			urlToProcess = scanner.Text()
		}

		// 2. URLのスキーム補完とバリデーション
		processedURL, err := ensureScheme(urlToProcess)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}
		log.Printf("処理対象URL: %s (全体タイムアウト: %s)\n", processedURL, overallTimeout)

		// 3. 依存性の初期化
		// cmd/root.go で初期化された共有スタックを使用。ユーザー指定の --timeout と --max-retries が反映されます。
		stack := GetGlobalStack()
		if stack == nil {
			return fmt.Errorf("ディスパッチスタックが初期化されていません。rootコマンドのPreRunを確認してください")
		}

		extractor, err := extract.NewExtractor(stack.Client)
		if err != nil {
			return fmt.Errorf("Extractorの初期化エラー: %w", err)
		}

		// 4. メインロジックの実行
		text, isBodyExtracted, err := runExtractionPipeline(processedURL, extractor, overallTimeout)
		if err != nil {
			return fmt.Errorf("コンテンツ抽出パイプラインの実行エラー (URL: %s): %w", processedURL, err)
		}

		// 5. 結果の出力
		if !isBodyExtracted {
			fmt.Printf("本文は見つかりませんでしたが、タイトルを取得しました:\n%s\n", text)
		} else {
			fmt.Println("--- 抽出された本文 ---")
			fmt.Println(text)
			fmt.Println("-----------------------")
		}

		return nil
	},
}

func init() {
	// rawUrl 変数にフラグのポインタをバインドします
	extractCmd.Flags().StringVarP(&rawUrl, "url", "u", "", "抽出対象のURL")
}
