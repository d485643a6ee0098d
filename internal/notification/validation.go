package notification

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// bpnPattern は事業者番号（BPNL/BPNS/BPNA + 英数字12桁）の形式。
var bpnPattern = regexp.MustCompile(`^BPN[LSA][A-Z0-9]{12}$`)

var registerOnce sync.Once

// ValidBPN は事業者番号の形式が正しいかどうかを返す。
func ValidBPN(bpn string) bool {
	return bpnPattern.MatchString(bpn)
}

// registerValidators はginのバリデータに "bpn" タグを登録する。
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("bpn", func(fl validator.FieldLevel) bool {
			return ValidBPN(fl.Field().String())
		})
	})
}
