package jetstream

import (
	"context"

	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/restore"
)

// ProcessedOffsets reports the ack floor of the durable consumer group as the
// processed offset of the stream's single partition.
func (s *Stream) ProcessedOffsets(ctx context.Context, group string) (restore.TopicPartitionOffsets, error) {
	info, err := s.manager.ConsumerInfo(s.name, group)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read consumer %s", group)
	}

	return restore.TopicPartitionOffsets{
		s.name: {0: int64(info.AckFloor.Stream)},
	}, nil
}
