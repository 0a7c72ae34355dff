package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"piezo-writer/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStage struct {
	name    string
	journal *[]string
	seen    [][]float64
	failOn  uint64
}

func (s *recordingStage) Process(st *State) error {
	*s.journal = append(*s.journal, "process:"+s.name)
	s.seen = append(s.seen, append([]float64(nil), st.Vector...))
	if s.failOn != 0 && st.Tick == s.failOn {
		return errors.New("bad tick")
	}
	return nil
}

func (s *recordingStage) Close() error {
	*s.journal = append(*s.journal, "close:"+s.name)
	return nil
}

func stageInit(journal *[]string, stages map[string]*recordingStage, in, out Contract) InitFunc {
	return func(dev *Device) error {
		for _, p := range dev.Params {
			if p.Key == "fail" {
				return errors.New("refused")
			}
		}
		s := &recordingStage{name: dev.Name, journal: journal}
		stages[dev.Name] = s
		dev.Stage = s
		dev.In = in
		dev.Out = out
		return nil
	}
}

func mustPipeline(t *testing.T, doc string) *config.Pipeline {
	t.Helper()
	p, err := config.ParsePipeline([]byte(doc))
	require.NoError(t, err)
	return p
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	noop := func(*Device) error { return nil }

	require.NoError(t, reg.Register("b", noop))
	require.NoError(t, reg.Register("a", noop))
	assert.Error(t, reg.Register("a", noop))
	assert.Error(t, reg.Register("", noop))
	assert.Error(t, reg.Register("c", nil))
	assert.Equal(t, []string{"a", "b"}, reg.Types())
}

func TestBuildAndLoop(t *testing.T) {
	var journal []string
	stages := map[string]*recordingStage{}
	reg := NewRegistry()
	require.NoError(t, reg.Register("sink", stageInit(&journal, stages, FeedContract, Contract{})))

	devices, err := reg.Build(mustPipeline(t, `
pipeline:
  - {type: sink, name: first}
  - {type: sink, name: second}
`), FeedContract)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	feed := NewFeed(3)
	loop := NewLoop(devices, feed, time.Millisecond)

	require.NoError(t, feed.Set([]float64{1, 2, 3}))
	loop.Tick()
	require.NoError(t, feed.Set([]float64{4, 5, 6}))
	loop.Tick()
	loop.Close()
	loop.Close()

	assert.Equal(t, []string{
		"process:first", "process:second",
		"process:first", "process:second",
		"close:second", "close:first",
	}, journal)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, stages["first"].seen)

	status := loop.Status()
	assert.Equal(t, uint64(2), status.Ticks)
	assert.Equal(t, "STOPPED", status.State)
	assert.Equal(t, []string{"first", "second"}, status.Devices)
}

func TestBuildRollsBackOnFailure(t *testing.T) {
	var journal []string
	stages := map[string]*recordingStage{}
	reg := NewRegistry()
	require.NoError(t, reg.Register("sink", stageInit(&journal, stages, FeedContract, Contract{})))

	devices, err := reg.Build(mustPipeline(t, `
pipeline:
  - {type: sink, name: first}
  - {type: sink, name: second}
  - {type: sink, name: third, params: {fail: true}}
`), FeedContract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Nil(t, devices)
	assert.Equal(t, []string{"close:second", "close:first"}, journal)
}

func TestBuildUnknownType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Build(mustPipeline(t, `pipeline: [{type: nope}]`), FeedContract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown device type "nope"`)
}

func TestBuildChecksContracts(t *testing.T) {
	var journal []string
	stages := map[string]*recordingStage{}
	reg := NewRegistry()
	amps := Contract{Type: TypeVector, Unit: Unit(99)}
	require.NoError(t, reg.Register("amps", stageInit(&journal, stages, amps, Contract{})))

	_, err := reg.Build(mustPipeline(t, `pipeline: [{type: amps}]`), FeedContract)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects vector/Unit(99) input")
	assert.Equal(t, []string{"close:amps"}, journal)
}

func TestLoopCountsErrors(t *testing.T) {
	var journal []string
	stage := &recordingStage{name: "flaky", journal: &journal, failOn: 2}
	loop := NewLoop([]*Device{{Name: "flaky", Stage: stage}}, NewFeed(3), time.Millisecond)

	loop.Tick()
	loop.Tick()
	loop.Tick()

	status := loop.Status()
	assert.Equal(t, uint64(3), status.Ticks)
	assert.Equal(t, uint64(1), status.Errors)
	assert.Equal(t, "IDLE", status.State)
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	var journal []string
	stage := &recordingStage{name: "s", journal: &journal}
	loop := NewLoop([]*Device{{Name: "s", Stage: stage}}, NewFeed(3), time.Millisecond)

	var states []string
	loop.OnStateChange(func(info StatusInfo) { states = append(states, info.State) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	assert.Greater(t, loop.Status().Ticks, uint64(0))
	assert.Equal(t, "close:s", journal[len(journal)-1])
	assert.Equal(t, []string{"RUNNING", "STOPPING", "STOPPED"}, states)

	err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STOPPED")
	assert.Equal(t, StateStopped, loop.status.GetState())
}

func TestLoopRunRejectsBadInterval(t *testing.T) {
	loop := NewLoop(nil, NewFeed(3), 0)
	assert.Error(t, loop.Run(context.Background()))
	assert.Equal(t, "ERROR", loop.Status().State)
}

func TestFeed(t *testing.T) {
	feed := NewFeed(3)
	assert.Equal(t, 3, feed.Len())
	assert.Equal(t, []float64{0, 0, 0}, feed.Snapshot())

	assert.Error(t, feed.Set([]float64{1, 2}))
	assert.Error(t, feed.Set([]float64{1, 2, math.NaN()}))

	in := []float64{1, 2, 3}
	require.NoError(t, feed.Set(in))
	in[0] = 100
	snap := feed.Snapshot()
	assert.Equal(t, []float64{1, 2, 3}, snap)
	snap[1] = 100
	assert.Equal(t, []float64{1, 2, 3}, feed.Snapshot())
}

func TestContract(t *testing.T) {
	assert.True(t, Contract{}.Accepts(FeedContract))
	assert.True(t, FeedContract.Accepts(FeedContract))
	assert.False(t, Contract{Type: TypeVector, Unit: UnitVolts}.Accepts(Contract{Type: TypeVector}))
	assert.Equal(t, FeedContract, Contract{}.Then(FeedContract))
	assert.Equal(t, "vector/V", FeedContract.String())
}

func TestDeviceCloseOnce(t *testing.T) {
	var journal []string
	dev := &Device{Name: "d", Stage: &recordingStage{name: "d", journal: &journal}}
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())
	assert.Equal(t, []string{"close:d"}, journal)
}
