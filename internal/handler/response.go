package handler

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// CallerHeader 调用方地址请求头
const CallerHeader = "X-Caller-Address"

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// LedgerErrorResponse 按账本错误类型返回对应状态码
func LedgerErrorResponse(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	ErrorResponse(c, status, err.Error())
}

var statusByError = []struct {
	status int
	errs   []error
}{
	{http.StatusBadGateway, []error{ledger.ErrTransferFailed}},
	{http.StatusNotFound, []error{ledger.ErrInvalidCampaign}},
	{http.StatusForbidden, []error{
		ledger.ErrNotOwner, ledger.ErrNotCreator, ledger.ErrNotApprover, ledger.ErrNotWhitelisted,
	}},
	{http.StatusBadRequest, []error{
		ledger.ErrInvalidAmount, ledger.ErrInvalidDeadline, ledger.ErrInvalidPrice, ledger.ErrWrongAsset,
		ledger.ErrZeroAmount, ledger.ErrInvalidFeeRate, ledger.ErrInvalidFeeRecipient, ledger.ErrInvalidOwner,
		ledger.ErrRewardUnavailable, ledger.ErrBelowMinimum,
	}},
	{http.StatusConflict, []error{
		ledger.ErrCampaignCancelled, ledger.ErrCampaignEnded, ledger.ErrCampaignNotApproved,
		ledger.ErrAlreadyCancelled, ledger.ErrAlreadyWithdrawn, ledger.ErrCampaignHasFunds,
		ledger.ErrGoalNotReached, ledger.ErrGoalReached, ledger.ErrDeadlineNotReached,
		ledger.ErrNotIcoCampaign, ledger.ErrReentrantCall,
	}},
	{http.StatusUnprocessableEntity, []error{
		ledger.ErrInsufficientIcoTokens, ledger.ErrNoTokensAvailable, ledger.ErrNoContribution,
	}},
}

// StatusFor 账本错误对应的 HTTP 状态码
func StatusFor(err error) int {
	for _, group := range statusByError {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// callerFrom 读取调用方地址，缺失或非法时直接写出 401
func callerFrom(c *gin.Context) (common.Address, bool) {
	raw := c.GetHeader(CallerHeader)
	if !common.IsHexAddress(raw) {
		ErrorResponse(c, http.StatusUnauthorized, "缺少或无效的调用方地址")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// campaignID 解析路径中的活动ID
func campaignID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的活动ID")
		return 0, false
	}
	return id, true
}

// parseAmount 十进制非负整数，空字符串视为 0
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return new(big.Int), true
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// parseAddress 可选地址，空字符串得到零地址
func parseAddress(s string) (common.Address, bool) {
	if s == "" {
		return common.Address{}, true
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}
