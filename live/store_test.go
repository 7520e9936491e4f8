package live_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/meshview/live"
	"github.com/c360/meshview/model"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestUpsertNodeUnionMerge(t *testing.T) {
	s := live.NewStore()

	first := model.NewNode("!a1b2c3d4")
	first.ShortName = "ALFA"
	first.BatteryLevel = intPtr(90)
	s.UpsertNode(first)

	second := model.NewNode("!a1b2c3d4")
	second.HardwareModel = "TBEAM"
	second.RSSI = intPtr(-80)
	merged := s.UpsertNode(second)

	assert.Equal(t, "ALFA", merged.ShortName)
	assert.Equal(t, "TBEAM", merged.HardwareModel)
	require.NotNil(t, merged.BatteryLevel)
	assert.Equal(t, 90, *merged.BatteryLevel)
	assert.Equal(t, model.QualityGood, merged.SignalQuality)

	nodes, links := s.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, links)
}

func TestMergePositionUnknownNodeDiscarded(t *testing.T) {
	s := live.NewStore()

	_, ok := s.MergePosition("!ghost", floatPtr(40.7), floatPtr(-74.0), nil, 1000)
	assert.False(t, ok)

	nodes, _ := s.Counts()
	assert.Equal(t, 0, nodes)
}

func TestMergePositionKnownNode(t *testing.T) {
	s := live.NewStore()
	s.UpsertNode(model.NewNode("!a1b2c3d4"))

	merged, ok := s.MergePosition("!a1b2c3d4", floatPtr(40.7), floatPtr(-74.0), floatPtr(12), 2000)
	require.True(t, ok)
	require.NotNil(t, merged.Latitude)
	assert.Equal(t, 40.7, *merged.Latitude)
	assert.Equal(t, int64(2000), merged.LastHeard)
}

func TestMergeTelemetrySynthesizesPlaceholder(t *testing.T) {
	s := live.NewStore()

	update := model.NewNode("!unseen01")
	update.BatteryLevel = intPtr(55)
	merged, created := s.MergeTelemetry(update)

	assert.True(t, created)
	assert.Equal(t, model.PlaceholderName("!unseen01"), merged.ShortName)
	assert.False(t, merged.HopCount.Known())
	require.NotNil(t, merged.BatteryLevel)
	assert.Equal(t, 55, *merged.BatteryLevel)

	// Second telemetry for the same node is a merge, not a create.
	_, created = s.MergeTelemetry(update)
	assert.False(t, created)
}

func TestEnvironmentMetricsDoNotClobberDeviceMetrics(t *testing.T) {
	s := live.NewStore()

	device := model.NewNode("x")
	device.BatteryLevel = intPtr(70)
	device.Voltage = floatPtr(3.9)
	s.MergeTelemetry(device)

	env := model.NewNode("x")
	env.Temperature = floatPtr(22.5)
	env.Humidity = floatPtr(40)
	merged, _ := s.MergeTelemetry(env)

	require.NotNil(t, merged.BatteryLevel)
	assert.Equal(t, 70, *merged.BatteryLevel)
	require.NotNil(t, merged.Temperature)
	assert.Equal(t, 22.5, *merged.Temperature)
}

func TestMessageRingBounded(t *testing.T) {
	s := live.NewStore()

	for i := 0; i < live.MessageRingSize+10; i++ {
		s.AppendMessage(model.TextMessage{
			FromID:    "a",
			Text:      fmt.Sprintf("msg-%d", i),
			Timestamp: int64(i),
		})
	}

	snap := s.Snapshot(0)
	require.Len(t, snap.Messages, live.MessageRingSize)
	// Oldest entries were evicted; order is chronological.
	assert.Equal(t, "msg-10", snap.Messages[0].Text)
	assert.Equal(t, fmt.Sprintf("msg-%d", live.MessageRingSize+9), snap.Messages[len(snap.Messages)-1].Text)
}

func TestSnapshotMessageLimit(t *testing.T) {
	s := live.NewStore()
	for i := 0; i < 80; i++ {
		s.AppendMessage(model.TextMessage{Text: fmt.Sprintf("msg-%d", i)})
	}

	snap := s.Snapshot(50)
	require.Len(t, snap.Messages, 50)
	// The newest 50, still oldest first.
	assert.Equal(t, "msg-30", snap.Messages[0].Text)
	assert.Equal(t, "msg-79", snap.Messages[49].Text)
}

func TestWithMessageRingOverridesCapacity(t *testing.T) {
	s := live.NewStore(live.WithMessageRing(5))

	for i := 0; i < 12; i++ {
		s.AppendMessage(model.TextMessage{Text: fmt.Sprintf("msg-%d", i)})
	}

	snap := s.Snapshot(0)
	require.Len(t, snap.Messages, 5)
	assert.Equal(t, "msg-7", snap.Messages[0].Text)
	assert.Equal(t, "msg-11", snap.Messages[4].Text)
}

func TestSnapshotDerivesNodeActivity(t *testing.T) {
	s := live.NewStore(live.WithFreshnessWindow(time.Minute))

	fresh := model.NewNode("!fresh001")
	fresh.LastHeard = model.NowMs()
	s.UpsertNode(fresh)

	stale := model.NewNode("!stale001")
	stale.LastHeard = model.NowMs() - 10*time.Minute.Milliseconds()
	s.UpsertNode(stale)

	snap := s.Snapshot(0)
	require.Len(t, snap.Nodes, 2)
	active := map[string]bool{}
	for _, n := range snap.Nodes {
		active[n.ID] = n.IsActive
	}
	assert.True(t, active["!fresh001"])
	assert.False(t, active["!stale001"])
}

func TestRestoreRebuildsState(t *testing.T) {
	s := live.NewStore()

	n := model.NewNode("!a1b2c3d4")
	n.ShortName = "ALFA"
	n.BatteryLevel = intPtr(77)
	link := model.NetworkLink{FromID: "!a1b2c3d4", ToID: "!eeff0011", PacketCount: 3, AvgRSSI: -70}
	msgs := []model.TextMessage{
		{FromID: "!a1b2c3d4", Text: "first", Timestamp: 1000},
		{FromID: "!a1b2c3d4", Text: "second", Timestamp: 2000},
	}

	s.Restore([]model.Node{n}, []model.NetworkLink{link}, msgs)

	got, ok := s.Node("!a1b2c3d4")
	require.True(t, ok)
	assert.Equal(t, "ALFA", got.ShortName)
	require.NotNil(t, got.BatteryLevel)
	assert.Equal(t, 77, *got.BatteryLevel)

	nodes, links := s.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 1, links)

	snap := s.Snapshot(0)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "first", snap.Messages[0].Text)
}

func TestUpsertLinkRollingStats(t *testing.T) {
	s := live.NewStore()

	s.UpsertLink("A", "B", model.LinkObservation{RSSI: intPtr(-60), HopCount: 1, SeenAt: 1000})
	link := s.UpsertLink("A", "B", model.LinkObservation{RSSI: intPtr(-80), HopCount: 1, SeenAt: 2000})

	assert.Equal(t, int64(2), link.PacketCount)
	assert.Equal(t, -70.0, link.AvgRSSI)
	assert.True(t, link.Direct)

	// Ordered pairs are distinct links.
	s.UpsertLink("B", "A", model.LinkObservation{RSSI: intPtr(-90), HopCount: 2, SeenAt: 3000})
	_, links := s.Counts()
	assert.Equal(t, 2, links)
}

func TestResetClearsEverything(t *testing.T) {
	s := live.NewStore()
	s.UpsertNode(model.NewNode("a"))
	s.AppendMessage(model.TextMessage{Text: "hi"})
	s.UpsertLink("a", "b", model.LinkObservation{HopCount: 1, SeenAt: 1})

	s.Reset()

	nodes, links := s.Counts()
	assert.Equal(t, 0, nodes)
	assert.Equal(t, 0, links)
	assert.Empty(t, s.Snapshot(0).Messages)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := live.NewStore()
	n := model.NewNode("a")
	n.ShortName = "ALFA"
	s.UpsertNode(n)

	snap := s.Snapshot(0)
	require.Len(t, snap.Nodes, 1)
	snap.Nodes[0].ShortName = "mutated"

	stored, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, "ALFA", stored.ShortName)
}

func TestConcurrentMutationAndSnapshot(t *testing.T) {
	s := live.NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("node-%d", i)
				n := model.NewNode(id)
				n.LastHeard = int64(j)
				s.UpsertNode(n)
				s.UpsertLink(id, "hub", model.LinkObservation{HopCount: 1, SeenAt: int64(j)})
				_ = s.Snapshot(10)
			}
		}(i)
	}
	wg.Wait()

	nodes, links := s.Counts()
	assert.Equal(t, 8, nodes)
	assert.Equal(t, 8, links)
}
