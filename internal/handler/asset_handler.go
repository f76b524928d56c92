package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/cfl/internal/chain"
	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/receipt"
	"github.com/blues/cfl/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// AssetHandler 凭证与资产查询接口。
// bank 仅在 memory 后端存在，deposits 仅在 chain 后端存在。
type AssetHandler struct {
	ledger   *ledger.Ledger
	receipts *receipt.Registry
	bank     *vault.Bank
	deposits *chain.DepositBook
}

// NewAssetHandler 创建资产处理器
func NewAssetHandler(l *ledger.Ledger, receipts *receipt.Registry, bank *vault.Bank, deposits *chain.DepositBook) *AssetHandler {
	return &AssetHandler{ledger: l, receipts: receipts, bank: bank, deposits: deposits}
}

// GetReceipt 查询贡献凭证
func (h *AssetHandler) GetReceipt(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("rid"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的凭证ID")
		return
	}
	r, err := h.receipts.Get(id)
	if err != nil {
		recordErrorResponse(c, err)
		return
	}
	uri, err := h.receipts.TokenURI(id)
	if err != nil {
		recordErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取凭证成功", ReceiptResponse{
		ID:         r.ID,
		Owner:      r.Owner.Hex(),
		CampaignID: r.CampaignID,
		TokenURI:   uri,
	})
}

// GetReceiptsOf 某地址持有的凭证
func (h *AssetHandler) GetReceiptsOf(c *gin.Context) {
	owner, ok := parseAddress(c.Param("address"))
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	receipts := h.receipts.ReceiptsOf(owner)
	out := make([]ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		uri, _ := h.receipts.TokenURI(r.ID)
		out = append(out, ReceiptResponse{ID: r.ID, Owner: r.Owner.Hex(), CampaignID: r.CampaignID, TokenURI: uri})
	}
	SuccessResponse(c, http.StatusOK, "获取凭证成功", out)
}

// GetBalance 查询资产余额，token 为空表示原生币
func (h *AssetHandler) GetBalance(c *gin.Context) {
	holder, ok1 := parseAddress(c.Query("holder"))
	token, ok2 := parseAddress(c.Query("token"))
	if !ok1 || !ok2 || holder == (common.Address{}) {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	if h.bank == nil {
		ErrorResponse(c, http.StatusNotFound, "当前后端不提供金库")
		return
	}
	asset := assetOf(token)
	balance, err := h.bank.BalanceOf(c.Request.Context(), asset, holder)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp := gin.H{"holder": holder.Hex(), "asset": asset.String(), "balance": balance.String()}
	if !asset.IsNative() {
		resp["allowance"] = h.bank.Allowance(token, holder).String()
	}
	SuccessResponse(c, http.StatusOK, "获取余额成功", resp)
}

// Mint 管理员向地址增发资产（仅 memory 后端）
func (h *AssetHandler) Mint(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	if h.bank == nil {
		ErrorResponse(c, http.StatusNotFound, "当前后端不提供金库")
		return
	}
	if caller != h.ledger.Settings(c.Request.Context()).Owner {
		LedgerErrorResponse(c, ledger.ErrNotOwner)
		return
	}
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	holder, ok1 := parseAddress(req.Holder)
	token, ok2 := parseAddress(req.Token)
	amount, ok3 := parseAmount(req.Amount)
	if !ok1 || !ok2 || !ok3 || holder == (common.Address{}) {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址或金额")
		return
	}
	h.bank.Mint(assetOf(token), holder, amount)
	SuccessResponse(c, http.StatusOK, "增发成功", nil)
}

// Approve 调用方授权托管地址划转代币（仅 memory 后端）
func (h *AssetHandler) Approve(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	if h.bank == nil {
		ErrorResponse(c, http.StatusNotFound, "当前后端不提供金库")
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	token, ok1 := parseAddress(req.Token)
	amount, ok2 := parseAmount(req.Amount)
	if !ok1 || !ok2 || token == (common.Address{}) {
		ErrorResponse(c, http.StatusBadRequest, "无效的代币或金额")
		return
	}
	h.bank.Approve(token, caller, amount)
	SuccessResponse(c, http.StatusOK, "授权成功", nil)
}

// GetDeposit 已确认未使用的原生币入账（仅 chain 后端）
func (h *AssetHandler) GetDeposit(c *gin.Context) {
	payer, ok := parseAddress(c.Param("address"))
	if !ok || payer == (common.Address{}) {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	if h.deposits == nil {
		ErrorResponse(c, http.StatusNotFound, "当前后端不使用链上入账")
		return
	}
	SuccessResponse(c, http.StatusOK, "获取入账成功", gin.H{
		"payer":   payer.Hex(),
		"balance": h.deposits.Balance(payer).String(),
	})
}

func assetOf(token common.Address) ledger.Asset {
	if token == (common.Address{}) {
		return ledger.NativeAsset()
	}
	return ledger.FungibleAsset(token)
}
