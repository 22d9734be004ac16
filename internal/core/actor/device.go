package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/config"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/events"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/port"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/service"
	. "github.com/berfenger/solaxcloud2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	// extra time granted to a read on top of the fetch timeout
	DEVICE_READ_MARGIN = 2 * time.Second
)

// DeviceActor publishes the metrics of one device to the event stream. It
// only reads through the shared poller, so publish ticks never cost more
// than one upstream request per refresh interval.
type DeviceActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	cancelTick  scheduler.CancelFunc
	stash       *Stash
	config      *config.Config
	poller      port.TelemetryPoller
	accessors   []service.MetricAccessor
	eventStream *eventstream.EventStream
	readTimeout time.Duration

	logger *zap.Logger
}

type deviceReadResult struct {
	reading domain.DeviceReading
	err     error
}

func NewDeviceActor(config *config.Config, poller port.TelemetryPoller, eventStream *eventstream.EventStream, logger *zap.Logger) *DeviceActor {
	act := &DeviceActor{
		config:          config,
		poller:          poller,
		accessors:       service.NewMetricAccessors(poller),
		eventStream:     eventStream,
		stash:           &Stash{},
		readTimeout:     config.SolaxCloud.Timeout() + DEVICE_READ_MARGIN,
		logger:          ActorLogger(domain.DeviceActorId(poller.Device().Id), logger, zap.String("device", poller.Device().Name)),
		ActorWithStates: NewActorWithStates(),
	}
	act.Become(DeviceStartingState{
		actor: act,
	})
	return act
}

func (state *DeviceActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *DeviceActor) scheduleNextTick(ctx actor.Context) {
	if state.config.Monitor.UseCron() || state.scheduler == nil {
		return
	}
	state.cancelTick = state.scheduler.RequestOnce(state.config.Monitor.PublishInterval(), ctx.Self(), domain.PublishMetricsTick{})
}

func (state *DeviceActor) readDevice() func() domain.DeviceReading {
	poller := state.poller
	accessors := state.accessors
	timeout := state.readTimeout
	return func() domain.DeviceReading {
		readCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return service.ReadDevice(readCtx, poller, accessors)
	}
}

func (state *DeviceActor) publish(ctx actor.Context) {
	read := state.readDevice()
	NewBackgroundTaskNoError(ctx, func() *deviceReadResult {
		return &deviceReadResult{
			reading: read(),
		}
	}).WithTimeout(state.readTimeout).Recover(func(err error) deviceReadResult {
		return deviceReadResult{err: err}
	}).PipeTo(ctx.Self())
}

func (state *DeviceActor) respondHealth(ctx actor.Context) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.DeviceActorId(state.poller.Device().Id),
		Healthy: true,
		State:   state.StateName(),
	})
}

// answers GetDeviceMetricsRequest without waiting for a running publish
func (state *DeviceActor) respondMetrics(ctx actor.Context, msg domain.GetDeviceMetricsRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	if replyTo == nil {
		return
	}
	read := state.readDevice()
	NewBackgroundTaskNoError(ctx, func() *domain.GetDeviceMetricsResponse {
		return &domain.GetDeviceMetricsResponse{
			Reading: read(),
		}
	}).WithTimeout(state.readTimeout).Recover(func(err error) domain.GetDeviceMetricsResponse {
		return domain.GetDeviceMetricsResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}).PipeTo(replyTo)
}

func (state *DeviceActor) stop() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

// Starting state

type DeviceStartingState struct {
	ActorState
	actor *DeviceActor
}

func (state DeviceStartingState) Name() string {
	return "starting"
}

func (state DeviceStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("device@starting started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)

		// first publish right away, next ones on the timer or cron
		ctx.Send(ctx.Self(), domain.PublishMetricsTick{})

		state.actor.Become(DeviceIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("device@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type DeviceIdleState struct {
	ActorState
	actor *DeviceActor
}

func (state DeviceIdleState) Name() string {
	return "idle"
}

func (state DeviceIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("device@idle ActorHealthRequest")
		state.actor.respondHealth(ctx)
	case domain.GetDeviceMetricsRequest:
		state.actor.logger.Debug("device@idle GetDeviceMetricsRequest")
		state.actor.respondMetrics(ctx, msg)
	case domain.PublishMetricsTick:
		state.actor.logger.Debug("device@idle tick")
		state.actor.publish(ctx)
		state.actor.BecomeStacked(DevicePublishingState{
			actor: state.actor,
		})
	case *actor.Stopping:
		state.actor.stop()
	default:
		state.actor.logger.Debug("device@idle default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Publishing state

type DevicePublishingState struct {
	ActorState
	actor *DeviceActor
}

func (state DevicePublishingState) Name() string {
	return "publishing"
}

func (state DevicePublishingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case deviceReadResult:
		if msg.err != nil {
			state.actor.logger.Error("device@publishing read failed", zap.Error(msg.err))
		} else {
			evs := events.DeviceReadingToUpdateEvents(msg.reading)
			for _, ev := range evs {
				state.actor.eventStream.Publish(ev)
			}
			state.actor.logger.Debug("device@publishing published",
				zap.String("poll_state", msg.reading.State.String()),
				zap.Int("events", len(evs)))
		}
		state.actor.scheduleNextTick(ctx)
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("device@publishing ActorHealthRequest")
		state.actor.respondHealth(ctx)
	case domain.GetDeviceMetricsRequest:
		state.actor.logger.Debug("device@publishing GetDeviceMetricsRequest")
		state.actor.respondMetrics(ctx, msg)
	case *actor.Stopping:
		state.actor.stop()
	case domain.PublishMetricsTick:
		// a publish is already running, the next one is scheduled when it ends
		state.actor.logger.Debug("device@publishing tick dropped")
	default:
		state.actor.logger.Debug("device@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}
