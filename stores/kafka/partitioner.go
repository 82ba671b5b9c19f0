package kafka

import (
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/weegigs/wee-streams-go/we"
)

// RootHeader carries the root context id of every record so that all records
// of one root context land on the same partition.
const RootHeader = "wee-root"

// RootContextPartitioner places records by their root context header and
// falls back to key hashing for records without one.
func RootContextPartitioner() kgo.Partitioner {
	return rootContextPartitioner{fallback: kgo.StickyKeyPartitioner(nil)}
}

type rootContextPartitioner struct {
	fallback kgo.Partitioner
}

func (p rootContextPartitioner) ForTopic(topic string) kgo.TopicPartitioner {
	return rootContextTopicPartitioner{fallback: p.fallback.ForTopic(topic)}
}

type rootContextTopicPartitioner struct {
	fallback kgo.TopicPartitioner
}

func (p rootContextTopicPartitioner) RequiresConsistency(*kgo.Record) bool {
	return true
}

func (p rootContextTopicPartitioner) Partition(r *kgo.Record, n int) int {
	if root, ok := rootOf(r); ok {
		return we.PartitionFor(we.AggregateIdentifier{ID: root}, n)
	}

	return p.fallback.Partition(r, n)
}

func rootOf(r *kgo.Record) (string, bool) {
	for _, header := range r.Headers {
		if header.Key == RootHeader {
			return string(header.Value), true
		}
	}

	return "", false
}
