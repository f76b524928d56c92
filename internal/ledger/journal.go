package ledger

import (
	"context"
	"math/big"
)

// txn 一次状态转换的撤销日志与待提交事件
type txn struct {
	undo   []func()
	events []Event
}

type savepoint struct {
	undo   int
	events int
}

func (t *txn) onUndo(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) setInt(p **big.Int, v *big.Int) {
	old := *p
	t.onUndo(func() { *p = old })
	*p = v
}

func (t *txn) setBool(p *bool, v bool) {
	old := *p
	if old == v {
		return
	}
	t.onUndo(func() { *p = old })
	*p = v
}

func (t *txn) emit(ev Event) {
	t.events = append(t.events, ev)
}

func (t *txn) mark() savepoint {
	return savepoint{undo: len(t.undo), events: len(t.events)}
}

// rollbackTo 逆序执行撤销直到保存点
func (t *txn) rollbackTo(sp savepoint) {
	for i := len(t.undo) - 1; i >= sp.undo; i-- {
		t.undo[i]()
	}
	t.undo = t.undo[:sp.undo]
	t.events = t.events[:sp.events]
}

// reentrancyGuard 覆盖整个受保护操作集合的重入锁
type reentrancyGuard struct {
	entered bool
}

func (g *reentrancyGuard) enter() error {
	if g.entered {
		return ErrReentrantCall
	}
	g.entered = true
	return nil
}

func (g *reentrancyGuard) exit() {
	g.entered = false
}

type frameKey struct{}

// frame 正在执行的状态转换，随 ctx 传给外部能力
type frame struct {
	ledger *Ledger
	tx     *txn
}

func frameFrom(ctx context.Context) (*frame, bool) {
	f, ok := ctx.Value(frameKey{}).(*frame)
	return f, ok
}

// OnRollback 为当前状态转换登记补偿动作。
// 进程内的协作方（如内存金库）在完成划转后调用，转换失败时按逆序执行。
// ctx 不属于任何状态转换时返回 false。
func OnRollback(ctx context.Context, fn func()) bool {
	f, ok := frameFrom(ctx)
	if !ok {
		return false
	}
	f.tx.onUndo(fn)
	return true
}
