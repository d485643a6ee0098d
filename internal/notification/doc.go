// Package notification は事業者間でやり取りする通知を管理するサービスを提供する。
//
// 受信した通知（デジタルツインイベント）と送信する通知を同じテーブルに記録し、
// ステータスの更新・一覧取得・削除を行う。送信はコネクタ経由で相手の事業者へ届ける。
// 各操作は呼び出しごとにトランザクションを開始し、終了時に解放する。
package notification
