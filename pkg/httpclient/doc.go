// Package httpclient は外部HTTP APIを呼び出すJSONクライアントを提供する。
//
// データスペースコネクタへの通知送信や、シードツールからの
// バックエンドAPI呼び出しなど、サービス外部との通信パターンを統一する。
package httpclient
