package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/config"
	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	HA_DISCOVERY_RETRY_INTERVAL = 5 * time.Second
)

type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler
	devices   []domain.SolaxDevice
	mqttActor *actor.PID

	logger *zap.Logger
}

type haDiscoveryRetry struct {
}

func NewHADiscoveryActor(config *config.Config, devices []domain.SolaxDevice, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		devices:   devices,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.requestMQTTHealth(ctx)
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			// MQTT still connecting
			state.scheduler.SendOnce(HA_DISCOVERY_RETRY_INTERVAL, ctx.Self(), haDiscoveryRetry{})
			return
		}
		sensors := DiscoverySensors(state.config.MQTT.BaseTopic, state.devices)
		state.logger.Info("hadiscovery@healthcheck publishing discovery", zap.Int("devices", len(state.devices)), zap.Int("sensors", len(sensors)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
		})
		state.behavior.Become(state.Done)
	case haDiscoveryRetry:
		state.requestMQTTHealth(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
}

func (state *HADiscoveryActor) requestMQTTHealth(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
		}
	})
}

// DiscoverySensors lists the bridge sensors followed by the sensors of every
// device, each device attached to the bridge through via_device.
func DiscoverySensors(baseTopic string, devices []domain.SolaxDevice) []domain.GenericSensor {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(baseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	for _, device := range devices {
		inverterDevice := domain.InverterDevice(device)
		inverterDevice.ViaDevice = bridgeDevice.Id
		sensors = append(sensors, domain.InverterSensors(inverterDevice, device)...)
	}
	return sensors
}
