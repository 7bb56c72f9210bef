package commission

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/marketplace-backend/internal/common/utils"
)

// defaultMinorUnits 未登记币种的小数位数
const defaultMinorUnits int32 = 2

// ISO 4217 中小数位数不为 2 的币种
var currencyMinorUnits = map[string]int32{
	"bif": 0, "clp": 0, "djf": 0, "gnf": 0, "isk": 0, "jpy": 0, "kmf": 0, "krw": 0,
	"pyg": 0, "rwf": 0, "ugx": 0, "vnd": 0, "vuv": 0, "xaf": 0, "xof": 0, "xpf": 0,
	"bhd": 3, "iqd": 3, "jod": 3, "kwd": 3, "lyd": 3, "omr": 3, "tnd": 3,
}

// MinorUnits 返回币种最小货币单位对应的小数位数
func MinorUnits(currencyCode string) int32 {
	if units, ok := currencyMinorUnits[utils.NormalizeCode(currencyCode)]; ok {
		return units
	}
	return defaultMinorUnits
}

// RoundToMinorUnit 四舍五入到币种最小货币单位
func RoundToMinorUnit(amount decimal.Decimal, currencyCode string) decimal.Decimal {
	return amount.Round(MinorUnits(currencyCode))
}
