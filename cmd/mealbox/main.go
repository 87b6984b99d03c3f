// Command mealbox は献立サブスクリプションアプリのBFFサーバーを起動する。
//
//	mealbox serve        APIサーバー（デフォルト）
//	mealbox worker       期限切れお気に入りの定期削除
//	mealbox migrate      DBマイグレーションの適用
//	mealbox healthcheck  /health の疎通確認
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/mealbox/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mealbox: %v\n", err)
		os.Exit(1)
	}
}
