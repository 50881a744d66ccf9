package aggregator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"invhistory/internal/model"
)

type prefetchSlot struct {
	table *model.SnapshotTable
	err   error
	done  chan struct{}
}

// prefetch 以有限并发预读快照。返回的 next(i) 按时间顺序阻塞等待第 i 个来源；
// 已读取但尚未折叠的快照最多 concurrency 个。stop 取消尚未开始的读取并等待进行中的读取结束。
func (a *Aggregator) prefetch(ordered []model.SnapshotSource) (next func(i int) (*model.SnapshotTable, error), stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	slots := make([]*prefetchSlot, len(ordered))
	for i := range slots {
		slots[i] = &prefetchSlot{done: make(chan struct{})}
	}

	// 每个已发起且未被 next 取走的来源占用一个位置
	window := make(chan struct{}, a.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
	feed:
		for i := range ordered {
			select {
			case window <- struct{}{}:
			case <-ctx.Done():
				break feed
			}

			slot := slots[i]
			src := ordered[i]
			g.Go(func() error {
				defer close(slot.done)
				if err := gctx.Err(); err != nil {
					slot.err = &SourceLoadError{Location: src.Location, Err: err}
					return nil
				}
				slot.table, slot.err = a.load(src)
				return nil
			})
		}
		_ = g.Wait()
	}()

	next = func(i int) (*model.SnapshotTable, error) {
		slot := slots[i]
		<-slot.done
		table, err := slot.table, slot.err
		slot.table = nil
		<-window
		return table, err
	}
	stop = func() {
		cancel()
		<-dispatched
	}
	return next, stop
}
