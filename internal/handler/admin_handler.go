package handler

import (
	"net/http"

	"github.com/blues/cfl/internal/ledger"
	"github.com/gin-gonic/gin"
)

// AdminHandler 全局配置接口，仅管理员可写
type AdminHandler struct {
	ledger *ledger.Ledger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(l *ledger.Ledger) *AdminHandler {
	return &AdminHandler{ledger: l}
}

// GetSettings 当前全局配置
func (h *AdminHandler) GetSettings(c *gin.Context) {
	s := h.ledger.Settings(c.Request.Context())
	SuccessResponse(c, http.StatusOK, "获取配置成功", SettingsResponse{
		Owner:          s.Owner.Hex(),
		Custody:        h.ledger.Custody().Hex(),
		Approver:       s.Approver.Hex(),
		FeeBps:         s.FeeBps,
		FeeRecipient:   s.FeeRecipient.Hex(),
		ReceiptBaseURI: s.ReceiptBaseURI,
	})
}

// SetApprover 设置审批人，空地址表示清除
func (h *AdminHandler) SetApprover(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	approver, ok := parseAddress(req.Address)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	if err := h.ledger.SetApprover(c.Request.Context(), caller, approver); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "审批人更新成功", nil)
}

// SetFee 设置手续费
func (h *AdminHandler) SetFee(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req SetFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	recipient, ok := parseAddress(req.Recipient)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	if err := h.ledger.SetFee(c.Request.Context(), caller, req.FeeBps, recipient); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "手续费更新成功", nil)
}

// SetReceiptBaseURI 设置凭证元数据地址
func (h *AdminHandler) SetReceiptBaseURI(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req BaseURIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.ledger.SetReceiptBaseURI(c.Request.Context(), caller, req.BaseURI); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "凭证元数据地址更新成功", nil)
}

// TransferOwnership 转移管理员
func (h *AdminHandler) TransferOwnership(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	newOwner, ok := parseAddress(req.Address)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	if err := h.ledger.TransferOwnership(c.Request.Context(), caller, newOwner); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "管理员转移成功", nil)
}
