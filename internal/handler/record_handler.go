package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/receipt"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RecordHandler 记录查询接口，读取事件同步任务写入的数据
type RecordHandler struct {
	campaignLogic   *logic.CampaignLogic
	contributeLogic *logic.ContributeRecordLogic
	refundLogic     *logic.RefundRecordLogic
	settlementLogic *logic.SettlementRecordLogic
	escrowLogic     *logic.EscrowRecordLogic
	eventLogic      *logic.EventLogic
}

// NewRecordHandler 创建记录查询处理器
func NewRecordHandler(db *gorm.DB) *RecordHandler {
	return &RecordHandler{
		campaignLogic:   logic.NewCampaignLogic(db),
		contributeLogic: logic.NewContributeRecordLogic(db),
		refundLogic:     logic.NewRefundRecordLogic(db),
		settlementLogic: logic.NewSettlementRecordLogic(db),
		escrowLogic:     logic.NewEscrowRecordLogic(db),
		eventLogic:      logic.NewEventLogic(db),
	}
}

// GetCampaignSnapshots 活动投影列表，可按 status、creator 过滤
func (h *RecordHandler) GetCampaignSnapshots(c *gin.Context) {
	page, pageSize := pageQuery(c)
	campaigns, total, err := h.campaignLogic.GetCampaigns(c.Query("status"), c.Query("creator"), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取活动列表成功", RecordListResponse{
		Records:    campaigns,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetCampaignStats 活动统计
func (h *RecordHandler) GetCampaignStats(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	stats, err := h.campaignLogic.GetCampaignStats(id)
	if err != nil {
		recordErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取活动统计成功", stats)
}

// GetContributeRecords 活动贡献记录
func (h *RecordHandler) GetContributeRecords(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	records, total, err := h.contributeLogic.GetCampaignContributeRecords(id, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取贡献记录成功", RecordListResponse{
		Records:    records,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetContributeStats 活动贡献统计
func (h *RecordHandler) GetContributeStats(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	stats, err := h.contributeLogic.GetContributeStats(id)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取贡献统计成功", stats)
}

// GetContributorRecords 某地址的全部贡献记录
func (h *RecordHandler) GetContributorRecords(c *gin.Context) {
	address, ok := parseAddress(c.Param("address"))
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}
	page, pageSize := pageQuery(c)
	records, total, err := h.contributeLogic.GetContributorRecords(address.Hex(), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取贡献记录成功", RecordListResponse{
		Records:    records,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetRefundRecords 活动退款记录
func (h *RecordHandler) GetRefundRecords(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	records, total, err := h.refundLogic.GetCampaignRefundRecords(id, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取退款记录成功", RecordListResponse{
		Records:    records,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetRefundStats 活动退款统计
func (h *RecordHandler) GetRefundStats(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	stats, err := h.refundLogic.GetRefundStats(id)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取退款统计成功", stats)
}

// GetSettlement 活动结算记录
func (h *RecordHandler) GetSettlement(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	record, err := h.settlementLogic.GetSettlementRecord(id)
	if err != nil {
		recordErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取结算记录成功", record)
}

// GetSettlements 全部结算记录与手续费合计
func (h *RecordHandler) GetSettlements(c *gin.Context) {
	page, pageSize := pageQuery(c)
	records, total, err := h.settlementLogic.GetSettlementRecords(page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	feeTotal, err := h.settlementLogic.GetPlatformFeeTotal()
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取结算记录成功", gin.H{
		"records":          records,
		"pagination":       newPagination(page, pageSize, total),
		"platformFeeTotal": feeTotal,
	})
}

// GetEscrowRecords ICO 托管流水与余额
func (h *RecordHandler) GetEscrowRecords(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	records, total, err := h.escrowLogic.GetCampaignEscrowRecords(id, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	balance, err := h.escrowLogic.GetEscrowBalance(id)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取托管流水成功", gin.H{
		"records":    records,
		"pagination": newPagination(page, pageSize, total),
		"balance":    balance,
	})
}

// GetEvents 账本事件，可按 campaign_id、event_type 过滤
func (h *RecordHandler) GetEvents(c *gin.Context) {
	var campaignId uint64
	if raw := c.Query("campaign_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "无效的活动ID")
			return
		}
		campaignId = id
	}
	page, pageSize := pageQuery(c)
	events, total, err := h.eventLogic.GetEvents(campaignId, c.Query("event_type"), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取事件成功", RecordListResponse{
		Records:    events,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetEvent 按序号查询事件
func (h *RecordHandler) GetEvent(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的事件序号")
		return
	}
	event, err := h.eventLogic.GetEventBySeq(seq)
	if err != nil {
		recordErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取事件成功", event)
}

// GetDeadLetters 超过重试上限而停止处理的事件
func (h *RecordHandler) GetDeadLetters(c *gin.Context) {
	_, pageSize := pageQuery(c)
	events, err := h.eventLogic.GetDeadLetterEvents(pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, "获取死信事件成功", events)
}

// RetryDeadLetter 死信事件重新进入待处理队列
func (h *RecordHandler) RetryDeadLetter(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("seq"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的事件序号")
		return
	}
	if err := h.eventLogic.RetryDeadLetter(seq); err != nil {
		recordErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "死信事件已重新排队", gin.H{"seq": seq})
}

// recordErrorResponse 记录不存在返回 404
func recordErrorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, logic.ErrCampaignNotFound),
		errors.Is(err, logic.ErrSettlementNotFound),
		errors.Is(err, logic.ErrEventNotFound),
		errors.Is(err, receipt.ErrUnknownReceipt):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	default:
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
