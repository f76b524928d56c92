package logic

import (
	"errors"
	"math/big"
)

var (
	ErrCampaignNotFound   = errors.New("活动不存在")
	ErrSettlementNotFound = errors.New("结算记录不存在")
	ErrEventNotFound      = errors.New("事件不存在")
)

const maxPageSize = 100

// normalizePage 页码从 1 开始，每页默认 10 条
func normalizePage(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return (page - 1) * pageSize, pageSize
}

// validAmount 十进制非负整数
func validAmount(s string) bool {
	v, ok := new(big.Int).SetString(s, 10)
	return ok && v.Sign() >= 0
}

// sumAmounts 金额按字符串存储，汇总在内存中完成以免数据库精度丢失
func sumAmounts(values []string) *big.Int {
	total := new(big.Int)
	for _, s := range values {
		if v, ok := new(big.Int).SetString(s, 10); ok {
			total.Add(total, v)
		}
	}
	return total
}
