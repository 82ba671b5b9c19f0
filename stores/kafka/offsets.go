package kafka

import (
	"context"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"

	"github.com/weegigs/wee-streams-go/restore"
)

// OffsetSource reads the committed offsets of a consumer group. Kafka commits
// the next offset to consume, so the processed offset is one less.
type OffsetSource struct {
	admin *kadm.Client
}

func NewOffsetSource(admin *kadm.Client) *OffsetSource {
	return &OffsetSource{admin: admin}
}

func (s *OffsetSource) ProcessedOffsets(ctx context.Context, group string) (restore.TopicPartitionOffsets, error) {
	responses, err := s.admin.FetchOffsets(ctx, group)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch offsets of %s", group)
	}

	if err := responses.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to fetch offsets of %s", group)
	}

	offsets := restore.TopicPartitionOffsets{}
	responses.Each(func(response kadm.OffsetResponse) {
		if response.At < 0 {
			return
		}

		partitions, ok := offsets[response.Topic]
		if !ok {
			partitions = map[int32]int64{}
			offsets[response.Topic] = partitions
		}
		partitions[response.Partition] = response.At - 1
	})

	return offsets, nil
}
