package task

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/blues/cfl/internal/event"
	"github.com/blues/cfl/internal/ledger"
	"github.com/blues/cfl/internal/logic"
	"github.com/blues/cfl/internal/model"
	"github.com/blues/cfl/internal/repository"
	"github.com/blues/cfl/internal/vault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	creator = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestJobsSyncLedgerIntoRecordStore(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	bank := vault.NewBank(custody)
	recorder := event.NewRecorder(logic.NewEventLogic(db))
	l := ledger.New(ledger.Params{
		Owner: owner, Custody: custody, Transfer: bank, Emitter: recorder,
		Clock: func() time.Time { return now },
	})

	id, err := l.CreateCampaign(ctx, creator, ledger.CampaignParams{
		Goal: big.NewInt(10), Deadline: now.Add(time.Hour), Asset: ledger.NativeAsset(),
	})
	require.NoError(t, err)
	bank.Mint(ledger.NativeAsset(), alice, big.NewInt(4))
	require.NoError(t, l.Contribute(ctx, alice, id, big.NewInt(4)))

	sync := NewEventSyncJob(recorder, event.NewDispatcher(logic.NewEventLogic(db), event.NewProcessorManager(db), 2), nil, time.Minute)
	assert.Equal(t, "ledger_event_sync", sync.GetName())
	flushed, processed, published := sync.run(ctx)
	assert.Equal(t, 2, flushed)
	assert.Equal(t, 2, processed)
	assert.Zero(t, published)

	snapshot := NewCampaignSnapshotJob(l, logic.NewCampaignLogic(db), time.Minute)
	n, err := snapshot.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	campaigns := logic.NewCampaignLogic(db)
	row, err := campaigns.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, "4", row.Raised)
	assert.Equal(t, model.CampaignStatusFunding, row.Status)

	// 到期后状态随快照更新
	now = now.Add(2 * time.Hour)
	_, err = snapshot.run(ctx)
	require.NoError(t, err)
	row, err = campaigns.GetCampaign(id)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusFailed, row.Status)
}

func TestManagerRegistersJobs(t *testing.T) {
	recorder := event.NewRecorder(nil)
	job := NewEventSyncJob(recorder, nil, nil, time.Hour)

	m, err := NewManager(job)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	m.Stop()
}

type countingScanner struct {
	calls int
	err   error
}

func (s *countingScanner) Scan(context.Context) (int, error) {
	s.calls++
	return 2, s.err
}

func TestDepositScanJob(t *testing.T) {
	scanner := &countingScanner{}
	job := NewDepositScanJob(scanner, time.Minute)
	assert.Equal(t, "deposit_scan", job.GetName())

	job.Execute()
	scanner.err = fmt.Errorf("rpc down")
	job.Execute()
	assert.Equal(t, 2, scanner.calls)

	m, err := NewManager(job)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	m.Stop()
}
