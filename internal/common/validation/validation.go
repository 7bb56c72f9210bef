// Package validation 注册请求参数的自定义校验规则
package validation

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/dumeirei/marketplace-backend/internal/models"
)

// 自定义校验标签
const (
	TagCommissionReference = "commission_reference"
	TagCommissionTarget    = "commission_target"
	TagCommissionRateType  = "commission_rate_type"
	TagCurrencyCode        = "currency_code"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// Register 向 gin 的校验引擎注册自定义规则，重复调用只生效一次
func Register() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		registerErr = RegisterTo(v)
	})
	return registerErr
}

// RegisterTo 向指定校验器注册自定义规则
func RegisterTo(v *validator.Validate) error {
	rules := map[string]validator.Func{
		TagCommissionReference: validateCommissionReference,
		TagCommissionTarget:    validateCommissionTarget,
		TagCommissionRateType:  validateCommissionRateType,
		TagCurrencyCode:        validateCurrencyCode,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func validateCommissionReference(fl validator.FieldLevel) bool {
	return models.CommissionReference(fl.Field().String()).IsValid()
}

func validateCommissionTarget(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.CommissionTargetItem, models.CommissionTargetShipping:
		return true
	}
	return false
}

func validateCommissionRateType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.CommissionRateTypePercentage, models.CommissionRateTypeFlat:
		return true
	}
	return false
}

// validateCurrencyCode 三位字母币种代码，大小写不限
func validateCurrencyCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) != 3 {
		return false
	}
	for _, c := range strings.ToLower(code) {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
