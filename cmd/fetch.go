package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-net-dispatch/pkg/client"
	"github.com/shouni/go-net-dispatch/pkg/request"
)

// コマンドラインフラグ変数を定義
var (
	fetchURL     string   // --url 取得対象のURL
	fetchMethod  string   // --method HTTPメソッド
	fetchHeaders []string // --header 追加ヘッダー ("Key: Value" 形式、複数指定可)
	showHeaders  bool     // --show-headers レスポンスヘッダーの表示
)

// parseHeaderFlags は、"Key: Value" 形式のフラグ値をヘッダーマップに変換します。
func parseHeaderFlags(values []string) (http.Header, error) {
	if len(values) == 0 {
		return nil, nil
	}
	header := make(http.Header, len(values))
	for _, v := range values {
		key, value, found := strings.Cut(v, ":")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("ヘッダーの形式が不正です (\"Key: Value\" 形式で指定してください): %q", v)
		}
		header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return header, nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "URLへのリクエストをディスパッチし、ステータスとボディを表示します",
	Long:  `指定されたURLへのリクエストを登録済みハンドラチェーンへディスパッチし、レスポンスのステータス・ヘッダー・ボディを表示します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {

		// 全体タイムアウトを設定: クライアントタイムアウトの2倍
		overallTimeout := time.Duration(Flags.TimeoutSec*2) * time.Second
		if Flags.TimeoutSec == 0 {
			overallTimeout = DefaultOverallTimeout
		}

		// 1. URLのスキーム補完とバリデーション
		processedURL, err := ensureScheme(fetchURL)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		// 2. リクエストの構築
		header, err := parseHeaderFlags(fetchHeaders)
		if err != nil {
			return err
		}
		req := &request.Request{
			URL:    processedURL,
			Method: fetchMethod,
			Header: header,
		}

		// 3. 共有スタックの取得とディスパッチの実行
		stack := GetGlobalStack()
		if stack == nil {
			return fmt.Errorf("ディスパッチスタックが初期化されていません。rootコマンドのPreRunを確認してください")
		}

		ctx, cancel := context.WithTimeout(context.Background(), overallTimeout)
		defer cancel()

		resp, err := stack.Director.Send(ctx, req)
		if err != nil {
			return fmt.Errorf("リクエストのディスパッチに失敗しました (URL: %s): %w", processedURL, err)
		}
		defer resp.Close()

		// 4. 結果の出力
		fmt.Printf("--- レスポンス (%s) ---\n", resp.URL)
		fmt.Printf("ステータス: %s\n", resp.Status)

		if showHeaders {
			for key, values := range resp.Header {
				for _, value := range values {
					fmt.Printf("%s: %s\n", key, value)
				}
			}
		}

		body, err := client.HandleLimitedResponse(resp, client.MaxBodySize)
		if err != nil {
			return fmt.Errorf("レスポンスボディの読み込みエラー: %w", err)
		}
		fmt.Println("-----------------------")
		fmt.Println(string(body))

		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchURL, "url", "u", "", "取得対象のURL")
	fetchCmd.Flags().StringVarP(&fetchMethod, "method", "X", http.MethodGet, "HTTPメソッド")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "追加ヘッダー (\"Key: Value\" 形式、複数指定可)")
	fetchCmd.Flags().BoolVar(&showHeaders, "show-headers", false, "レスポンスヘッダーを表示する")

	// URLフラグを必須にする
	fetchCmd.MarkFlagRequired("url")
}
