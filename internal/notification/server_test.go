package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/ichub/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestServer はテスト用の通知サーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T, sender Sender, auth gin.HandlerFunc) *Server {
	t.Helper()

	svc := newTestService(t, sender)
	return NewServer(ServerConfig{
		Port:      "0",
		APIPrefix: "/v1",
		Auth:      auth,
	}, svc, NewTwinEventService(svc))
}

// doJSON はテスト用のHTTPリクエストを実行する。
func doJSON(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// receiveEvent はconnect-to-parentイベントで受信通知を作成する。
func receiveEvent(t *testing.T, s *Server, n Notification) Entity {
	t.Helper()

	w := doJSON(s, http.MethodPost, "/v1/digital-twin-event/connect-to-parent", n)
	if w.Code != http.StatusCreated {
		t.Fatalf("イベント受信に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}
	var e Entity
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	return e
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t, nil, nil)
	w := doJSON(s, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコードが期待値と異なる: got=%d, want=%d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp["status"] != "ok" || resp["service"] != "notification" {
		t.Errorf("レスポンスが期待値と異なる: %v", resp)
	}
}

func TestHandleTwinEvent(t *testing.T) {
	t.Parallel()

	paths := []string{
		"/v1/digital-twin-event/connect-to-parent",
		"/v1/digital-twin-event/connect-to-child",
		"/v1/digital-twin-event/submodel-update",
		"/v1/digital-twin-event/feedback",
	}
	for _, path := range paths {
		t.Run(path+" は受信通知を作成すること", func(t *testing.T) {
			t.Parallel()

			s := setupTestServer(t, nil, nil)
			n := newTestNotification(testReceiverBPN)
			w := doJSON(s, http.MethodPost, path, n)

			if w.Code != http.StatusCreated {
				t.Fatalf("ステータスコードが期待値と異なる: got=%d, want=%d, body=%s", w.Code, http.StatusCreated, w.Body.String())
			}
			var e Entity
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
				t.Fatalf("レスポンスのデコードに失敗: %v", err)
			}
			if e.MessageID != n.Header.MessageID {
				t.Errorf("message_idが期待値と異なる: got=%s, want=%s", e.MessageID, n.Header.MessageID)
			}
			if e.Direction != DirectionIncoming || e.Status != StatusReceived {
				t.Errorf("方向/ステータスが期待値と異なる: %s/%s", e.Direction, e.Status)
			}
		})
	}

	t.Run("同じメッセージIDは409を返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t, nil, nil)
		n := newTestNotification(testReceiverBPN)
		receiveEvent(t, s, n)

		w := doJSON(s, http.MethodPost, "/v1/digital-twin-event/feedback", n)
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコードが期待値と異なる: got=%d, want=%d", w.Code, http.StatusConflict)
		}
	})

	t.Run("不正なペイロードは400を返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t, nil, nil)
		bad := []struct {
			name string
			body any
		}{
			{name: "ヘッダーが無い", body: map[string]any{"content": map[string]any{}}},
			{name: "事業者番号が不正", body: map[string]any{"header": map[string]any{
				"messageId": uuid.NewString(), "senderBpn": "ACME", "receiverBpn": testReceiverBPN,
			}}},
			{name: "メッセージIDが不正", body: map[string]any{"header": map[string]any{
				"messageId": "not-a-uuid", "senderBpn": testSenderBPN, "receiverBpn": testReceiverBPN,
			}}},
		}
		for _, b := range bad {
			w := doJSON(s, http.MethodPost, "/v1/digital-twin-event/connect-to-child", b.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: ステータスコードが期待値と異なる: got=%d, want=%d", b.name, w.Code, http.StatusBadRequest)
			}
		}
	})
}

func TestHandleList(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t, nil, nil)
	for range 3 {
		receiveEvent(t, s, newTestNotification(testReceiverBPN))
	}
	receiveEvent(t, s, newTestNotification("BPNL5470544322BB"))

	t.Run("受信者宛ての通知をlimit件まで返すこと", func(t *testing.T) {
		t.Parallel()

		w := doJSON(s, http.MethodPost, "/v1/notifications-management/notifications?bpn="+testReceiverBPN+"&limit=2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコードが期待値と異なる: got=%d, body=%s", w.Code, w.Body.String())
		}
		var list []Entity
		if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
			t.Fatalf("レスポンスのデコードに失敗: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("件数が期待値と異なる: got=%d, want=2", len(list))
		}
		for _, e := range list {
			if e.ReceiverBPN != testReceiverBPN {
				t.Errorf("他の受信者の通知が含まれている: %s", e.ReceiverBPN)
			}
		}
	})

	t.Run("ステータスで絞り込めること", func(t *testing.T) {
		t.Parallel()

		w := doJSON(s, http.MethodPost, "/v1/notifications-management/notifications?bpn="+testReceiverBPN+"&status=read", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコードが期待値と異なる: got=%d", w.Code)
		}
		if body := w.Body.String(); body != "[]" {
			t.Errorf("空の配列が期待される: %s", body)
		}
	})

	t.Run("不正なパラメータは400を返すこと", func(t *testing.T) {
		t.Parallel()

		queries := []string{
			"",
			"?bpn=ACME",
			"?bpn=" + testReceiverBPN + "&status=archived",
			"?bpn=" + testReceiverBPN + "&limit=0",
			"?bpn=" + testReceiverBPN + "&limit=1001",
			"?bpn=" + testReceiverBPN + "&offset=-1",
		}
		for _, q := range queries {
			w := doJSON(s, http.MethodPost, "/v1/notifications-management/notifications"+q, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%q: ステータスコードが期待値と異なる: got=%d, want=%d", q, w.Code, http.StatusBadRequest)
			}
		}
	})
}

func TestHandleUpdateStatusAndDelete(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t, nil, nil)
	e := receiveEvent(t, s, newTestNotification(testReceiverBPN))
	id := e.MessageID.String()

	w := doJSON(s, http.MethodPut, "/v1/notifications-management/notification/status?id="+id+"&status=read", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータス更新: got=%d, body=%s", w.Code, w.Body.String())
	}
	var updated Entity
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if updated.Status != StatusRead {
		t.Errorf("ステータスが期待値と異なる: got=%s, want=%s", updated.Status, StatusRead)
	}

	w = doJSON(s, http.MethodGet, "/v1/notifications-management/notification?id="+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("取得: got=%d, want=%d", w.Code, http.StatusOK)
	}

	w = doJSON(s, http.MethodDelete, "/v1/notifications-management/notification?id="+id, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("削除: got=%d, want=%d", w.Code, http.StatusNoContent)
	}

	w = doJSON(s, http.MethodDelete, "/v1/notifications-management/notification?id="+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("2回目の削除: got=%d, want=%d", w.Code, http.StatusNotFound)
	}

	w = doJSON(s, http.MethodGet, "/v1/notifications-management/notification?id="+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("削除後の取得: got=%d, want=%d", w.Code, http.StatusNotFound)
	}

	w = doJSON(s, http.MethodPut, "/v1/notifications-management/notification/status?id="+id+"&status=sent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("削除後の更新: got=%d, want=%d", w.Code, http.StatusNotFound)
	}

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "IDが無い削除", method: http.MethodDelete, path: "/v1/notifications-management/notification"},
		{name: "IDが不正な削除", method: http.MethodDelete, path: "/v1/notifications-management/notification?id=abc"},
		{name: "ステータスが不正な更新", method: http.MethodPut, path: "/v1/notifications-management/notification/status?id=" + id + "&status=archived"},
		{name: "IDが不正な取得", method: http.MethodGet, path: "/v1/notifications-management/notification?id=abc"},
	}
	for _, tt := range tests {
		w := doJSON(s, tt.method, tt.path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: got=%d, want=%d", tt.name, w.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleSend(t *testing.T) {
	t.Parallel()

	newBody := func() map[string]any {
		return map[string]any{
			"notification":     newTestNotification(testReceiverBPN),
			"endpoint_path":    "/digital-twin-event/connect-to-parent",
			"provider_bpn":     testReceiverBPN,
			"provider_dsp_url": "https://connector.partner.example/api/v1/dsp",
			"policies":         []map[string]any{{"odrl:permission": map[string]any{"odrl:action": "use"}}},
		}
	}

	t.Run("送信に成功した場合は201とsentの通知を返すこと", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{result: &SendResult{TransferID: "tp-1", State: "STARTED"}}
		s := setupTestServer(t, sender, nil)

		w := doJSON(s, http.MethodPost, "/v1/notifications-management/notification", newBody())
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコードが期待値と異なる: got=%d, body=%s", w.Code, w.Body.String())
		}
		var e Entity
		if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
			t.Fatalf("レスポンスのデコードに失敗: %v", err)
		}
		if e.Direction != DirectionOutgoing || e.Status != StatusSent {
			t.Errorf("方向/ステータスが期待値と異なる: %s/%s", e.Direction, e.Status)
		}
		if len(sender.calls) != 1 {
			t.Errorf("コネクタの呼び出し回数が期待値と異なる: got=%d", len(sender.calls))
		}
	})

	t.Run("送信に失敗した場合は400と原因を返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t, &fakeSender{err: errors.New("no route to host")}, nil)

		w := doJSON(s, http.MethodPost, "/v1/notifications-management/notification", newBody())
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコードが期待値と異なる: got=%d, want=%d", w.Code, http.StatusBadRequest)
		}
		if !bytes.Contains(w.Body.Bytes(), []byte("no route to host")) {
			t.Errorf("原因がレスポンスに含まれていない: %s", w.Body.String())
		}
		if !bytes.Contains(w.Body.Bytes(), []byte(`"status":"failed"`)) {
			t.Errorf("failedの通知がレスポンスに含まれていない: %s", w.Body.String())
		}
	})

	t.Run("リクエストが不正な場合は400を返しコネクタを呼ばないこと", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{result: &SendResult{TransferID: "tp-1"}}
		s := setupTestServer(t, sender, nil)

		mutations := map[string]func(map[string]any){
			"パスがスラッシュで始まらない": func(b map[string]any) { b["endpoint_path"] = "digital-twin-event" },
			"事業者番号が不正":        func(b map[string]any) { b["provider_bpn"] = "ACME" },
			"URLが不正":           func(b map[string]any) { b["provider_dsp_url"] = "not a url" },
			"ポリシーが無い":         func(b map[string]any) { delete(b, "policies") },
			"ポリシーが空":          func(b map[string]any) { b["policies"] = []map[string]any{} },
		}
		for name, mutate := range mutations {
			body := newBody()
			mutate(body)
			w := doJSON(s, http.MethodPost, "/v1/notifications-management/notification", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: got=%d, want=%d", name, w.Code, http.StatusBadRequest)
			}
		}
		if len(sender.calls) != 0 {
			t.Errorf("コネクタが呼ばれている: %d", len(sender.calls))
		}
	})
}

func TestAuthenticationGate(t *testing.T) {
	t.Parallel()

	auth, err := middleware.Authentication(middleware.AuthModeAPIKey, "test-api-key", "")
	if err != nil {
		t.Fatalf("認証ミドルウェアの生成に失敗: %v", err)
	}
	s := setupTestServer(t, nil, auth)
	path := fmt.Sprintf("/v1/notifications-management/notifications?bpn=%s", testReceiverBPN)

	t.Run("APIキーが無い場合は401を返すこと", func(t *testing.T) {
		t.Parallel()

		w := doJSON(s, http.MethodPost, path, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("got=%d, want=%d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("APIキーが正しい場合は通過すること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(middleware.HeaderAPIKey, "test-api-key")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("got=%d, want=%d", w.Code, http.StatusOK)
		}
	})

	t.Run("ヘルスチェックは認証不要であること", func(t *testing.T) {
		t.Parallel()

		w := doJSON(s, http.MethodGet, "/health", nil)
		if w.Code != http.StatusOK {
			t.Errorf("got=%d, want=%d", w.Code, http.StatusOK)
		}
	})
}

func TestAuthenticationGate_JWT(t *testing.T) {
	t.Parallel()

	const secret = "test-jwt-secret"
	auth, err := middleware.Authentication(middleware.AuthModeJWT, "", secret)
	if err != nil {
		t.Fatalf("認証ミドルウェアの生成に失敗: %v", err)
	}
	s := setupTestServer(t, nil, auth)

	token, err := middleware.GenerateJWT(secret, testReceiverBPN, time.Hour)
	if err != nil {
		t.Fatalf("トークンの生成に失敗: %v", err)
	}
	raw, _ := json.Marshal(newTestNotification(testReceiverBPN))
	req := httptest.NewRequest(http.MethodPost, "/v1/digital-twin-event/connect-to-parent", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("イベント受信に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}
	list := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/notifications-management/notifications"+query, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w
	}

	t.Run("自分宛ての一覧は取得できること", func(t *testing.T) {
		t.Parallel()

		w := list("?bpn=" + testReceiverBPN)
		if w.Code != http.StatusOK {
			t.Fatalf("got=%d, want=%d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		var entities []Entity
		if err := json.Unmarshal(w.Body.Bytes(), &entities); err != nil {
			t.Fatalf("レスポンスのデコードに失敗: %v", err)
		}
		if len(entities) != 1 {
			t.Errorf("件数が期待値と異なる: got=%d, want=1", len(entities))
		}
	})

	t.Run("bpnを省略するとトークンの事業者番号で絞り込むこと", func(t *testing.T) {
		t.Parallel()

		w := list("")
		if w.Code != http.StatusOK {
			t.Fatalf("got=%d, want=%d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}
		if !bytes.Contains(w.Body.Bytes(), []byte(testReceiverBPN)) {
			t.Errorf("自分宛ての通知が含まれていない: %s", w.Body.String())
		}
	})

	t.Run("他の事業者宛ての一覧は403を返すこと", func(t *testing.T) {
		t.Parallel()

		w := list("?bpn=" + testSenderBPN)
		if w.Code != http.StatusForbidden {
			t.Errorf("got=%d, want=%d", w.Code, http.StatusForbidden)
		}
	})
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t, nil, nil)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("停止時にエラーが返された: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("コンテキストのキャンセル後にサーバーが停止しない")
	}
}
