package handler

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// CampaignHandler 活动生命周期接口，直接作用于账本
type CampaignHandler struct {
	ledger *ledger.Ledger
}

// NewCampaignHandler 创建活动处理器
func NewCampaignHandler(l *ledger.Ledger) *CampaignHandler {
	return &CampaignHandler{ledger: l}
}

// CreateCampaign 创建普通活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	goal, ok1 := parseAmount(req.Goal)
	minContribution, ok2 := parseAmount(req.MinContribution)
	token, ok3 := parseAddress(req.Token)
	if !ok1 || !ok2 || !ok3 {
		ErrorResponse(c, http.StatusBadRequest, "无效的金额或代币地址")
		return
	}

	asset := ledger.NativeAsset()
	if req.Token != "" {
		asset = ledger.FungibleAsset(token)
	}
	id, err := h.ledger.CreateCampaign(c.Request.Context(), caller, ledger.CampaignParams{
		Goal:             goal,
		Deadline:         time.Unix(req.Deadline, 0),
		Asset:            asset,
		MinContribution:  minContribution,
		WhitelistEnabled: req.WhitelistEnabled,
		RewardEnabled:    req.RewardEnabled,
	})
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "活动创建成功", CreateCampaignResponse{ID: id})
}

// CreateIcoCampaign 创建 ICO 活动
func (h *CampaignHandler) CreateIcoCampaign(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req CreateIcoCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	goal, ok1 := parseAmount(req.Goal)
	minContribution, ok2 := parseAmount(req.MinContribution)
	price, ok3 := parseAmount(req.TokenPrice)
	saleToken, ok4 := parseAddress(req.SaleToken)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		ErrorResponse(c, http.StatusBadRequest, "无效的金额或代币地址")
		return
	}

	id, err := h.ledger.CreateIcoCampaign(c.Request.Context(), caller, ledger.IcoParams{
		Goal:             goal,
		Deadline:         time.Unix(req.Deadline, 0),
		SaleToken:        saleToken,
		MinContribution:  minContribution,
		WhitelistEnabled: req.WhitelistEnabled,
		RewardEnabled:    req.RewardEnabled,
		TokenPrice:       price,
	})
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "ICO活动创建成功", CreateCampaignResponse{ID: id})
}

// GetCampaigns 账本中的全部活动
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	ctx := c.Request.Context()
	campaigns := h.ledger.Campaigns(ctx)
	out := make([]CampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		status, err := h.ledger.Status(ctx, campaign.ID)
		if err != nil {
			LedgerErrorResponse(c, err)
			return
		}
		out = append(out, ToCampaignResponse(campaign, status))
	}
	SuccessResponse(c, http.StatusOK, "获取活动列表成功", out)
}

// GetCampaign 活动实时状态
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	campaign, err := h.ledger.Campaign(ctx, id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	status, err := h.ledger.Status(ctx, id)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取活动成功", ToCampaignResponse(campaign, status))
}

// GetAccount 贡献者在活动中的账户
func (h *CampaignHandler) GetAccount(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	holder, ok := parseAddress(c.Param("address"))
	if !ok || holder == (common.Address{}) {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}

	ctx := c.Request.Context()
	contribution, err := h.ledger.ContributionOf(ctx, id, holder)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	owed, err := h.ledger.OwedTokens(ctx, id, holder)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	whitelisted, err := h.ledger.IsWhitelisted(ctx, id, holder)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	rewarded, err := h.ledger.RewardIssued(ctx, id, holder)
	if err != nil {
		LedgerErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取账户成功", AccountResponse{
		CampaignID:   id,
		Address:      holder.Hex(),
		Contribution: contribution.String(),
		OwedTokens:   owed.String(),
		Whitelisted:  whitelisted,
		RewardIssued: rewarded,
	})
}

// Approve 审批活动
func (h *CampaignHandler) Approve(c *gin.Context) {
	h.act(c, "活动审批成功", h.ledger.Approve)
}

// Cancel 取消活动
func (h *CampaignHandler) Cancel(c *gin.Context) {
	h.act(c, "活动取消成功", h.ledger.Cancel)
}

// Withdraw 创建者提取募集资金
func (h *CampaignHandler) Withdraw(c *gin.Context) {
	h.act(c, "提取成功", h.ledger.Withdraw)
}

// Refund 贡献者退款
func (h *CampaignHandler) Refund(c *gin.Context) {
	h.act(c, "退款成功", h.ledger.Refund)
}

// ClaimTokens 领取 ICO 代币
func (h *CampaignHandler) ClaimTokens(c *gin.Context) {
	h.act(c, "代币领取成功", h.ledger.ClaimTokens)
}

// WithdrawUnsoldTokens 创建者取回未售出代币
func (h *CampaignHandler) WithdrawUnsoldTokens(c *gin.Context) {
	h.act(c, "未售出代币取回成功", h.ledger.WithdrawUnsoldTokens)
}

// Contribute 贡献资金
func (h *CampaignHandler) Contribute(c *gin.Context) {
	h.actAmount(c, "贡献成功", h.ledger.Contribute)
}

// DepositTokens 创建者存入 ICO 代币
func (h *CampaignHandler) DepositTokens(c *gin.Context) {
	h.actAmount(c, "代币存入成功", h.ledger.DepositTokens)
}

// SetWhitelist 批量设置白名单
func (h *CampaignHandler) SetWhitelist(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	holders := make([]common.Address, 0, len(req.Addresses))
	for _, raw := range req.Addresses {
		addr, ok := parseAddress(raw)
		if !ok || addr == (common.Address{}) {
			ErrorResponse(c, http.StatusBadRequest, "无效的地址: "+raw)
			return
		}
		holders = append(holders, addr)
	}

	if err := h.ledger.SetWhitelistBatch(c.Request.Context(), caller, id, holders, req.Allowed); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "白名单更新成功", nil)
}

// act 只需要调用方与活动ID的操作
func (h *CampaignHandler) act(c *gin.Context, message string, op func(ctx context.Context, caller common.Address, id uint64) error) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}
	if err := op(c.Request.Context(), caller, id); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, nil)
}

// actAmount 带金额的操作
func (h *CampaignHandler) actAmount(c *gin.Context, message string, op func(ctx context.Context, caller common.Address, id uint64, amount *big.Int) error) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的金额")
		return
	}
	if err := op(c.Request.Context(), caller, id, amount); err != nil {
		LedgerErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, nil)
}
