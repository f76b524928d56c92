package handler

import (
	"time"

	"github.com/blues/cfl/internal/ledger"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}

// 请求模型，金额均为十进制字符串（最小单位）

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Goal             string `json:"goal" binding:"required"`
	Deadline         int64  `json:"deadline" binding:"required"` // unix 秒
	Token            string `json:"token"`                       // 为空表示原生币
	MinContribution  string `json:"minContribution"`
	WhitelistEnabled bool   `json:"whitelistEnabled"`
	RewardEnabled    bool   `json:"rewardEnabled"`
}

// CreateIcoCampaignRequest 创建 ICO 活动请求
type CreateIcoCampaignRequest struct {
	Goal             string `json:"goal" binding:"required"`
	Deadline         int64  `json:"deadline" binding:"required"`
	SaleToken        string `json:"saleToken" binding:"required"`
	TokenPrice       string `json:"tokenPrice" binding:"required"`
	MinContribution  string `json:"minContribution"`
	WhitelistEnabled bool   `json:"whitelistEnabled"`
	RewardEnabled    bool   `json:"rewardEnabled"`
}

// AmountRequest 贡献、存入代币请求
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// WhitelistRequest 白名单设置请求
type WhitelistRequest struct {
	Addresses []string `json:"addresses" binding:"required"`
	Allowed   bool     `json:"allowed"`
}

// SetFeeRequest 手续费设置请求
type SetFeeRequest struct {
	FeeBps    uint64 `json:"feeBps"`
	Recipient string `json:"recipient"`
}

// AddressRequest 单地址请求（审批人、新管理员）
type AddressRequest struct {
	Address string `json:"address"`
}

// BaseURIRequest 凭证元数据地址请求
type BaseURIRequest struct {
	BaseURI string `json:"baseUri"`
}

// MintRequest 金库增发请求
type MintRequest struct {
	Token  string `json:"token"`
	Holder string `json:"holder" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// ApproveRequest 代币授权请求
type ApproveRequest struct {
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// 响应模型

// CampaignResponse 账本活动
type CampaignResponse struct {
	ID               uint64    `json:"id"`
	Creator          string    `json:"creator"`
	Asset            string    `json:"asset"`
	Goal             string    `json:"goal"`
	Raised           string    `json:"raised"`
	MinContribution  string    `json:"minContribution"`
	Deadline         time.Time `json:"deadline"`
	Approved         bool      `json:"approved"`
	Cancelled        bool      `json:"cancelled"`
	Withdrawn        bool      `json:"withdrawn"`
	WhitelistEnabled bool      `json:"whitelistEnabled"`
	RewardEnabled    bool      `json:"rewardEnabled"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`

	IsIco         bool   `json:"isIco"`
	SaleToken     string `json:"saleToken,omitempty"`
	TokenPrice    string `json:"tokenPrice,omitempty"`
	TokensSold    string `json:"tokensSold,omitempty"`
	TokensClaimed string `json:"tokensClaimed,omitempty"`
	Pool          string `json:"pool,omitempty"`
}

// CreateCampaignResponse 创建活动响应
type CreateCampaignResponse struct {
	ID uint64 `json:"id"`
}

// AccountResponse 贡献者在活动中的账户
type AccountResponse struct {
	CampaignID   uint64 `json:"campaignId"`
	Address      string `json:"address"`
	Contribution string `json:"contribution"`
	OwedTokens   string `json:"owedTokens"`
	Whitelisted  bool   `json:"whitelisted"`
	RewardIssued bool   `json:"rewardIssued"`
}

// SettingsResponse 全局配置
type SettingsResponse struct {
	Owner          string `json:"owner"`
	Custody        string `json:"custody"`
	Approver       string `json:"approver"`
	FeeBps         uint64 `json:"feeBps"`
	FeeRecipient   string `json:"feeRecipient"`
	ReceiptBaseURI string `json:"receiptBaseUri"`
}

// ReceiptResponse 贡献凭证
type ReceiptResponse struct {
	ID         uint64 `json:"id"`
	Owner      string `json:"owner"`
	CampaignID uint64 `json:"campaignId"`
	TokenURI   string `json:"tokenUri"`
}

// RecordListResponse 分页记录
type RecordListResponse struct {
	Records    interface{} `json:"records"`
	Pagination Pagination  `json:"pagination"`
}

// ToCampaignResponse 账本活动转换为响应模型
func ToCampaignResponse(c ledger.Campaign, status ledger.Status) CampaignResponse {
	resp := CampaignResponse{
		ID:               c.ID,
		Creator:          c.Creator.Hex(),
		Asset:            c.Asset.String(),
		Goal:             c.Goal.String(),
		Raised:           c.Raised.String(),
		MinContribution:  c.MinContribution.String(),
		Deadline:         c.Deadline,
		Approved:         c.Approved,
		Cancelled:        c.Cancelled,
		Withdrawn:        c.Withdrawn,
		WhitelistEnabled: c.WhitelistEnabled,
		RewardEnabled:    c.RewardEnabled,
		Status:           string(status),
		CreatedAt:        c.CreatedAt,
		IsIco:            c.IsIco,
	}
	if c.IsIco {
		resp.SaleToken = c.SaleToken.Hex()
		resp.TokenPrice = c.TokenPrice.String()
		resp.TokensSold = c.TokensSold.String()
		resp.TokensClaimed = c.TokensClaimed.String()
		resp.Pool = c.Pool.String()
	}
	return resp
}
