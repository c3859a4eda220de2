//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"organograma/pkg/testutil/containers"
)

func TestKafkaSinkProducesJSONKeyedBySubject(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := NewKafkaSink(ctx, rp.Brokers, "organograma.audit.test", 3)
	require.NoError(t, err)
	defer sink.Close()

	// creating the topic twice is fine
	again, err := NewKafkaSink(ctx, rp.Brokers, "organograma.audit.test", 3)
	require.NoError(t, err)
	again.Close()

	event := Event{
		Timestamp: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		Action:    ActionPersonCreated,
		ActorID:   "admin-1",
		Subject:   "p-1",
	}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics("organograma.audit.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollRecords(ctx, 1)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	assert.Equal(t, "p-1", string(records[0].Key))
	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event, got)
}
