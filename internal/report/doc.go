// Package report は、レポートディレクトリ配下の静的ファイルを解決します。
//
// 責務:
//   - URLパスからレポートルート内のファイルへの解決
//   - ルート外を指すパス（".." やルート外へのシンボリックリンク）の拒否
//   - 拡張子または内容からのContent-Typeの推定
//
// 仕様:
//   - ルートは os.Root で開き、解決はすべてその中で行う
//   - ディレクトリはインデックスファイルがあればそれを返し、一覧は返さない
package report
