package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/nao1215/ichub/pkg/middleware"
)

// listQuery は通知一覧取得のクエリパラメータ。
type listQuery struct {
	// BPN は受信者の事業者番号。JWT認証時は省略するとトークンの事業者番号を使う。
	BPN string `form:"bpn" binding:"omitempty,bpn"`
	// Status は絞り込むステータス。
	Status string `form:"status" binding:"omitempty,oneof=received read pending sent failed"`
	// Offset は読み飛ばす件数。
	Offset int `form:"offset,default=0" binding:"min=0"`
	// Limit は取得する最大件数。
	Limit int `form:"limit,default=10" binding:"min=1,max=1000"`
}

// statusQuery はステータス更新のクエリパラメータ。
type statusQuery struct {
	ID     string `form:"id" binding:"required"`
	Status string `form:"status" binding:"required,oneof=received read pending sent failed"`
}

// idQuery はメッセージIDのみを受け取るクエリパラメータ。
type idQuery struct {
	ID string `form:"id" binding:"required"`
}

// sendRequest は通知送信リクエストのJSON構造。
type sendRequest struct {
	// Notification は送信する通知。
	Notification Notification `json:"notification"`
	// EndpointPath は相手側の通知受付エンドポイントのパス。
	EndpointPath string `json:"endpoint_path" binding:"required,startswith=/"`
	// ProviderBPN は送信先の事業者番号。
	ProviderBPN string `json:"provider_bpn" binding:"required,bpn"`
	// ProviderDSPURL は送信先コネクタのDSPエンドポイントURL。
	ProviderDSPURL string `json:"provider_dsp_url" binding:"required,url"`
	// Policies はデータ転送の交渉に使うポリシー。
	Policies []map[string]any `json:"policies" binding:"required,min=1"`
}

// handleList は受信者宛ての通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		// JWTで認証された事業者は自分宛ての通知のみ参照できる
		if caller := middleware.GetBPN(c); caller != "" {
			if q.BPN == "" {
				q.BPN = caller
			}
			if q.BPN != caller {
				c.JSON(http.StatusForbidden, gin.H{"error": "他の事業者宛ての通知は参照できません"})
				return
			}
		}
		if q.BPN == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: bpnは必須です"})
			return
		}

		entities, err := s.notifications.List(c.Request.Context(), ListParams{
			ReceiverBPN: q.BPN,
			Status:      Status(q.Status),
			Offset:      q.Offset,
			Limit:       q.Limit,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Errorf("通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, entities)
	}
}

// handleSend は送信通知を記録し、コネクタ経由で相手の事業者へ送信するハンドラ。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		entity, err := s.notifications.Dispatch(c.Request.Context(), SendParams{
			Notification:   req.Notification,
			EndpointPath:   req.EndpointPath,
			ProviderBPN:    req.ProviderBPN,
			ProviderDSPURL: req.ProviderDSPURL,
			Policies:       req.Policies,
		})
		if err != nil {
			var notificationErr *NotificationError
			switch {
			case errors.As(err, &notificationErr):
				c.JSON(http.StatusBadRequest, gin.H{"error": notificationErr.Error(), "notification": entity})
			case errors.Is(err, ErrDuplicateMessage):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の送信に失敗しました"})
				log.Errorf("通知送信エラー: %v", err)
			}
			return
		}

		c.JSON(http.StatusCreated, entity)
	}
}

// handleGet はメッセージIDで通知を返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q idQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		messageID, err := uuid.Parse(q.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メッセージIDの形式が不正です"})
			return
		}

		entity, found, err := s.notifications.Get(c.Request.Context(), messageID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			log.Errorf("通知取得エラー: %v", err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, entity)
	}
}

// handleUpdateStatus は通知のステータスを更新するハンドラ。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q statusQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		messageID, err := uuid.Parse(q.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メッセージIDの形式が不正です"})
			return
		}

		entity, found, err := s.notifications.UpdateStatus(c.Request.Context(), messageID, Status(q.Status))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータスの更新に失敗しました"})
			log.Errorf("ステータス更新エラー: %v", err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, entity)
	}
}

// handleDelete は通知を削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q idQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		messageID, err := uuid.Parse(q.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メッセージIDの形式が不正です"})
			return
		}

		deleted, err := s.notifications.Delete(c.Request.Context(), messageID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の削除に失敗しました"})
			log.Errorf("通知削除エラー: %v", err)
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// handleTwinEvent はデジタルツインイベントを受信通知として記録するハンドラ。
func (s *Server) handleTwinEvent(receive func(context.Context, Notification) (Entity, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var n Notification
		if err := c.ShouldBindJSON(&n); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		entity, err := receive(c.Request.Context(), n)
		if err != nil {
			if errors.Is(err, ErrDuplicateMessage) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の記録に失敗しました"})
			log.Errorf("デジタルツインイベント記録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, entity)
	}
}
