package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-net-dispatch/pkg/extract"
	"github.com/shouni/go-net-dispatch/pkg/scraper"
)

// コマンドラインフラグ変数を定義
var (
	inputURLs   string // --urls フラグで受け取るカンマ区切りのURLリスト
	concurrency int    // --concurrency フラグで受け取る並列実行数
)

// runScrapePipeline は、並列スクレイピングを実行するメインロジックです。
func runScrapePipeline(urls []string, extractor *extract.Extractor, concurrency int) {

	// 1. Scraperの初期化 (NewParallelScraper を利用)
	parallelScraper := scraper.NewParallelScraper(extractor, concurrency)

	// 2. タイムアウト設定: クライアントタイムアウトの2倍を全体のタイムアウトとします。
	overallTimeout := time.Duration(Flags.TimeoutSec*2) * time.Second
	if Flags.TimeoutSec == 0 {
		overallTimeout = DefaultOverallTimeout
	}

	// 3. 全体処理のコンテキストを設定
	ctx, cancel := context.WithTimeout(context.Background(), overallTimeout)
	defer cancel()

	log.Printf("並列スクレイピング開始 (対象URL数: %d, 最大同時実行数: %d, 全体タイムアウト: %s)\n",
		len(urls), concurrency, overallTimeout)

	// 4. メインロジックの実行
	results := parallelScraper.ScrapeInParallel(ctx, urls)

	// 5. 結果の出力
	fmt.Println("--- 並列スクレイピング結果 ---")

	successCount := 0
	errorCount := 0

	for i, res := range results {
		if res.Error != nil {
			errorCount++
			fmt.Printf("❌ [%d] %s\n", i+1, res.URL)
			fmt.Printf("     エラー: %v\n", res.Error)
		} else {
			successCount++
			fmt.Printf("✅ [%d] %s\n", i+1, res.URL)
			fmt.Printf("     抽出コンテンツの長さ: %d 文字\n", len(res.Content))

			// デバッグ用にコンテンツのプレビューを表示
			if len(res.Content) > 100 {
				fmt.Printf("     プレビュー: %s...\n", res.Content[:100])
			} else {
				fmt.Printf("     コンテンツ: %s\n", res.Content)
			}
		}
	}

	fmt.Println("-------------------------------")
	fmt.Printf("完了: 成功 %d 件, 失敗 %d 件\n", successCount, errorCount)
}

var scraperCmd = &cobra.Command{
	Use:   "scraper",
	Short: "複数のURLを並列で処理し、コンテンツを抽出します",
	Long:  `--urls フラグでカンマ区切りのURLリストを受け取るか、標準入力からURLを一行ずつ読み込み、指定された最大同時実行数で並列抽出を実行します。`,
	Args:  cobra.NoArgs, // 位置引数は取らない

	RunE: func(cmd *cobra.Command, args []string) error {

		// 1. 依存性の初期化 (Stack -> Extractor)
		stack := GetGlobalStack()
		if stack == nil {
			return fmt.Errorf("ディスパッチスタックの取得に失敗しました")
		}
		extractor, err := extract.NewExtractor(stack.Client)
		if err != nil {
			return fmt.Errorf("Extractorの初期化エラー: %w", err)
		}

		// 2. 処理対象URLのリストを決定
		var urls []string

		if inputURLs != "" {
			// --urls フラグからURLリストを取得
			urls = strings.Split(inputURLs, ",")
		} else {
			// 標準入力からURLを一行ずつ読み込む
			log.Println("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)...")
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				url := strings.TrimSpace(scanner.Text())
				if url != "" {
					urls = append(urls, url)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("標準入力の読み取りエラー: %w", err)
			}
		}

		if len(urls) == 0 {
			return fmt.Errorf("処理対象のURLが一つも指定されていません")
		}

		// 3. メインロジックの実行
		runScrapePipeline(urls, extractor, concurrency)

		return nil
	},
}

func init() {
	// --urls フラグ: カンマ区切りのURLリスト
	scraperCmd.Flags().StringVarP(&inputURLs, "urls", "u", "",
		"抽出対象のカンマ区切りURLリスト (例: url1,url2,url3)")

	// --concurrency フラグ: 並列実行数の指定
	scraperCmd.Flags().IntVarP(&concurrency, "concurrency", "c",
		scraper.DefaultMaxConcurrency,
		fmt.Sprintf("最大並列実行数 (デフォルト: %d)", scraper.DefaultMaxConcurrency))
}
