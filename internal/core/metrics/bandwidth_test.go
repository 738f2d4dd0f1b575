package metrics

import (
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-bolt8/pkg/types"
)

func testNodeID(b byte) types.NodeID {
	var id types.NodeID
	id[0] = 0x02
	id[32] = b
	return id
}

func TestBandwidthCounter_Totals(t *testing.T) {
	bw := NewBandwidthCounter(clock.NewMock())
	a, b := testNodeID(1), testNodeID(2)

	bw.LogSent(a, 100)
	bw.LogSent(b, 50)
	bw.LogRecv(a, 200)

	totals := bw.Totals()
	assert.Equal(t, int64(150), totals.TotalOut)
	assert.Equal(t, int64(200), totals.TotalIn)
	assert.InDelta(t, 150.0/60, totals.RateOut, 0.001)

	sa := bw.ForNode(a)
	assert.Equal(t, int64(100), sa.TotalOut)
	assert.Equal(t, int64(200), sa.TotalIn)
	assert.Equal(t, int64(50), bw.ForNode(b).TotalOut)
	assert.Equal(t, Stats{}, bw.ForNode(testNodeID(9)))
	assert.Equal(t, 2, bw.Nodes())

	bw.Forget(a)
	assert.Equal(t, 1, bw.Nodes())
	assert.Equal(t, int64(150), bw.Totals().TotalOut, "Forget 不影响全局统计")

	bw.Reset()
	assert.Equal(t, Stats{}, bw.Totals())
	assert.Equal(t, 0, bw.Nodes())
}

func TestBandwidthCounter_Concurrent(t *testing.T) {
	bw := NewBandwidthCounter(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id types.NodeID) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				bw.LogSent(id, 1)
				bw.LogRecv(id, 2)
			}
		}(testNodeID(byte(i % 3)))
	}
	wg.Wait()

	assert.Equal(t, int64(8000), bw.Totals().TotalOut)
	assert.Equal(t, int64(16000), bw.Totals().TotalIn)
	assert.Equal(t, 3, bw.Nodes())
}
