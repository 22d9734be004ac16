package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type startTask struct {
	fn      func() (*int, error)
	timeout time.Duration
}

func spawnTaskRunner(t *testing.T, as *actor.ActorSystem) (*actor.PID, chan int) {
	received := make(chan int, 1)
	props := actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case startTask:
			task := NewBackgroundTask(ctx, msg.fn).Recover(func(err error) int {
				return -1
			})
			if msg.timeout > 0 {
				task = task.WithTimeout(msg.timeout)
			}
			task.PipeTo(ctx.Self())
		case int:
			received <- msg
		}
	})
	pid, err := as.Root.SpawnNamed(props, t.Name())
	require.NoError(t, err)
	return pid, received
}

func awaitResult(t *testing.T, ch chan int) int {
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("no result received")
		return 0
	}
}

func TestBackgroundTaskPipeTo(t *testing.T) {

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	pid, received := spawnTaskRunner(t, as)
	as.Root.Send(pid, startTask{fn: func() (*int, error) {
		v := 42
		return &v, nil
	}})

	assert.Equal(t, 42, awaitResult(t, received))
}

func TestBackgroundTaskRecoverError(t *testing.T) {

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	pid, received := spawnTaskRunner(t, as)
	as.Root.Send(pid, startTask{fn: func() (*int, error) {
		return nil, errors.New("boom")
	}})

	assert.Equal(t, -1, awaitResult(t, received))
}

func TestBackgroundTaskRecoverTimeout(t *testing.T) {

	as := NewActorSystemWithZapLogger(zap.NewNop())
	defer as.Shutdown()

	pid, received := spawnTaskRunner(t, as)
	as.Root.Send(pid, startTask{
		fn: func() (*int, error) {
			time.Sleep(time.Second)
			v := 1
			return &v, nil
		},
		timeout: 50 * time.Millisecond,
	})

	assert.Equal(t, -1, awaitResult(t, received))
}

type namedState struct {
	name string
}

func (s namedState) Name() string {
	return s.name
}

func (s namedState) Receive(actor.Context) {
}

func TestActorWithStatesName(t *testing.T) {

	assert := assert.New(t)

	s := NewActorWithStates()
	assert.Equal("", s.StateName())

	s.Become(namedState{name: "idle"})
	assert.Equal("idle", s.StateName())

	s.BecomeStacked(namedState{name: "publishing"})
	assert.Equal("publishing", s.StateName())

	s.UnbecomeStacked()
	assert.Equal("idle", s.StateName())
}
