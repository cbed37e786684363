// Package server は、レポートを配信するHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 静的ファイルの配信とエラー応答を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - ルートテーブルの構築
//   - レポートの静的ファイル（HTML/CSS/JS/JSON）の配信
//   - リクエストIDの付与とアクセスログ
//
// 仕様:
//   - ルーティングは gin を使用
//   - "/" はインデックスファイル、それ以外はレポートルート配下のファイルを返す
//   - 存在しないファイルとルート外へのパスは 404 を返す
//   - グレースフルシャットダウンに対応
package server
