package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blues/cfl/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnknownReceipt = errors.New("unknown receipt")

// Receipt 贡献凭证
type Receipt struct {
	ID         uint64
	Owner      common.Address
	CampaignID uint64
}

// Registry 进程内凭证登记，凭证 ID 从 1 开始递增
type Registry struct {
	mu       sync.RWMutex
	receipts []Receipt
	baseURI  string
}

// NewRegistry 创建凭证登记
func NewRegistry() *Registry {
	return &Registry{}
}

// Issue 实现 ledger.ReceiptRegistry。是否重复发放由账本控制。
func (r *Registry) Issue(ctx context.Context, owner common.Address, campaignID uint64) (uint64, error) {
	if owner == (common.Address{}) {
		return 0, fmt.Errorf("issue receipt for campaign %d: zero owner", campaignID)
	}
	r.mu.Lock()
	id := uint64(len(r.receipts)) + 1
	r.receipts = append(r.receipts, Receipt{ID: id, Owner: owner, CampaignID: campaignID})
	r.mu.Unlock()

	ledger.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if uint64(len(r.receipts)) == id {
			r.receipts = r.receipts[:id-1]
		}
	})
	return id, nil
}

// OwnerOf 实现 ledger.ReceiptRegistry
func (r *Registry) OwnerOf(receiptID uint64) (common.Address, error) {
	rc, err := r.Get(receiptID)
	if err != nil {
		return common.Address{}, err
	}
	return rc.Owner, nil
}

// Get 查询凭证
func (r *Registry) Get(receiptID uint64) (Receipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if receiptID == 0 || receiptID > uint64(len(r.receipts)) {
		return Receipt{}, ErrUnknownReceipt
	}
	return r.receipts[receiptID-1], nil
}

// ReceiptsOf 某地址持有的凭证
func (r *Registry) ReceiptsOf(owner common.Address) []Receipt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Receipt
	for _, rc := range r.receipts {
		if rc.Owner == owner {
			out = append(out, rc)
		}
	}
	return out
}

// SetBaseURI 实现 ledger.ReceiptRegistry
func (r *Registry) SetBaseURI(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseURI = uri
}

// TokenURI 凭证元数据地址
func (r *Registry) TokenURI(receiptID uint64) (string, error) {
	if _, err := r.Get(receiptID); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.baseURI == "" {
		return "", nil
	}
	return fmt.Sprintf("%s/%d", strings.TrimRight(r.baseURI, "/"), receiptID), nil
}
