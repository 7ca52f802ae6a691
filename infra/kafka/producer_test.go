package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestNewProducerConfig(t *testing.T) {
	p := NewProducer([]string{"a:9092", "b:9092"}, "cake.stress.reports")
	defer p.Close()

	assert.Equal(t, "cake.stress.reports", p.Topic())
	assert.Equal(t, kafka.RequireAll, p.writer.RequiredAcks)
	assert.False(t, p.writer.Async)
	assert.NotNil(t, p.writer.Addr)
}
