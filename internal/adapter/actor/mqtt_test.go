package actor

import (
	"math"
	"testing"
	"time"

	"github.com/berfenger/solaxcloud2mqtt/internal/core/domain"
	"github.com/berfenger/solaxcloud2mqtt/internal/util"
	"github.com/berfenger/solaxcloud2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	es := eventstream.EventStream{}
	recorder := NewTestMQTTRecorder()

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, recorder, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(ok)
	require.True(resp.Healthy)

	acPower, _ := domain.MetricDescriptorByKey(domain.METRIC_AC_POWER)
	soc, _ := domain.MetricDescriptorByKey(domain.METRIC_SOC)
	es.Publish(domain.NewMetricUpdateEvent("solax_test", acPower, 1234.5))
	es.Publish(domain.NewMetricUpdateEvent("solax_test", soc, math.NaN()))

	require.Eventually(func() bool {
		return recorder.Count() >= 2
	}, 2*time.Second, 20*time.Millisecond)

	payload, ok := recorder.Payload("solaxcloud/sensor/solax_test_acpower/state")
	assert.True(t, ok)
	assert.Equal(t, "1234.5", payload)

	payload, ok = recorder.Payload("solaxcloud/sensor/solax_test_soc/state")
	assert.True(t, ok)
	assert.Equal(t, "None", payload)

	context.Stop(pid)
}
