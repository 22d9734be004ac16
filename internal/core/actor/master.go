package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/solaxcloud2mqtt/internal/adapter/actor"
	"github.com/berfenger/solaxcloud2mqtt/internal/config"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/port"
	. "github.com/berfenger/solaxcloud2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	PUBLISH_JOB_KEY = "publish_metrics"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	pollers            []port.TelemetryPoller
	mqttActor          *actor.PID
	deviceActors       map[string]*actor.PID
	mqttActorProvider  MQTTActorProvider
	cronScheduler      quartz.Scheduler
	cancelCron         context.CancelFunc
	logger             *zap.Logger
}

type healthCheckResult struct {
	expected       map[string]struct{}
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, pollers []port.TelemetryPoller, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       &eventstream.EventStream{},
		pollers:           pollers,
		deviceActors:      make(map[string]*actor.PID, len(pollers)),
		mqttActorProvider: mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start one child per device
		for _, poller := range state.pollers {
			devicePID, err := state.startDeviceActor(ctx, poller)
			if err != nil {
				panic(err)
			}
			state.deviceActors[poller.Device().Id] = devicePID
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		// cron publishing
		if state.config.Monitor.UseCron() {
			err := state.startCronScheduler(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.childIds())
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		state.requestHealth(ctx, state.mqttActor, domain.ACTOR_ID_MQTT)
		// Device Actor Requests
		for id, pid := range state.deviceActors {
			state.requestHealth(ctx, pid, domain.DeviceActorId(id))
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.ListDevicesRequest:
		state.logger.Debug("master@default ListDevicesRequest")
		devices := make([]domain.SolaxDevice, 0, len(state.pollers))
		for _, poller := range state.pollers {
			devices = append(devices, poller.Device())
		}
		ForRequest(msg).Respond(ctx, domain.ListDevicesResponse{
			Devices: devices,
		})
	case domain.GetDeviceMetricsRequest:
		state.logger.Debug("master@default GetDeviceMetricsRequest", zap.String("device", msg.TargetDevice()))
		state.routeDeviceRequest(ctx, msg)
	case domain.PublishMetricsTick:
		// broadcast to every device
		for _, pid := range state.deviceActors {
			ctx.Send(pid, msg)
		}
	case *actor.Stopping:
		state.stopCronScheduler()
	case *actor.Terminated:
		// if MQTT fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT) {
			state.logger.Error("master@default mqtt terminated")
			panic(errors.New("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.logger.Debug("master@healthcheck timeout", zap.Int("received", state.currentHealthCheck.checksReceived))
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.stopCronScheduler()
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.record(msg)
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) routeDeviceRequest(ctx actor.Context, msg domain.DeviceRequest) {
	pid, ok := state.deviceActors[msg.TargetDevice()]
	if !ok {
		ForRequest(msg).Respond(ctx, domain.GetDeviceMetricsResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: fmt.Errorf("%w: %s", domain.ErrUnknownDevice, msg.TargetDevice()),
			},
		})
		return
	}
	ctx.RequestWithCustomSender(pid, msg, ForRequest(msg).ReplyTo(ctx))
}

func (state *MasterOfPuppetsActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

func (state *MasterOfPuppetsActor) childIds() []string {
	ids := []string{domain.ACTOR_ID_MQTT}
	for id := range state.deviceActors {
		ids = append(ids, domain.DeviceActorId(id))
	}
	return ids
}

func (state *MasterOfPuppetsActor) startDeviceActor(ctx actor.Context, poller port.TelemetryPoller) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	deviceProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDeviceActor(&state.config, poller, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	devicePID, err := ctx.SpawnNamed(deviceProps, domain.DeviceActorId(poller.Device().Id))
	if err != nil {
		return nil, err
	}

	return devicePID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	devices := make([]domain.SolaxDevice, 0, len(state.pollers))
	for _, poller := range state.pollers {
		devices = append(devices, poller.Device())
	}

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, devices, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

// startCronScheduler runs a quartz job that sends a publish tick to self on
// every cron fire.
func (state *MasterOfPuppetsActor) startCronScheduler(ctx actor.Context) error {
	trigger, err := quartz.NewCronTrigger(state.config.Monitor.PublishCron)
	if err != nil {
		return err
	}

	root := ctx.ActorSystem().Root
	self := ctx.Self()
	publishJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		root.Send(self, domain.PublishMetricsTick{})
		return true, nil
	})

	cronCtx, cancel := context.WithCancel(context.Background())
	sched := quartz.NewStdScheduler()
	sched.Start(cronCtx)
	err = sched.ScheduleJob(quartz.NewJobDetail(publishJob, quartz.NewJobKey(PUBLISH_JOB_KEY)), trigger)
	if err != nil {
		sched.Stop()
		cancel()
		return err
	}

	state.logger.Info("master@starting cron publishing scheduled", zap.String("cron", state.config.Monitor.PublishCron))
	state.cronScheduler = sched
	state.cancelCron = cancel
	return nil
}

func (state *MasterOfPuppetsActor) stopCronScheduler() {
	if state.cronScheduler != nil {
		state.cronScheduler.Stop()
		state.cronScheduler = nil
	}
	if state.cancelCron != nil {
		state.cancelCron()
		state.cancelCron = nil
	}
}

func (state *healthCheckResult) reset(ids []string) {
	state.expected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		state.expected[id] = struct{}{}
	}
	state.healthy = make(map[string]bool, len(ids))
	state.checksReceived = 0
	state.respondTo = nil
}

func (state *healthCheckResult) record(resp domain.ActorHealthResponse) {
	if _, ok := state.expected[resp.Id]; !ok {
		return
	}
	if _, seen := state.healthy[resp.Id]; !seen {
		state.checksReceived++
	}
	state.healthy[resp.Id] = resp.Healthy
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	if !state.allReceived() {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
