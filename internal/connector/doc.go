// Package connector はデータスペースのコネクタ（コンシューマ側）と通信するクライアントを提供する。
//
// 通知の送信では、自社のコネクタに転送を依頼し、コネクタが相手の事業者の
// コネクタとポリシーを交渉したうえで通知を届ける。
package connector
