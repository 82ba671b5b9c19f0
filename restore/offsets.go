package restore

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultSyncInterval = 10 * time.Second

// TopicPartitionOffsets maps topic to partition to offset.
type TopicPartitionOffsets map[string]map[int32]int64

func (o TopicPartitionOffsets) clone() TopicPartitionOffsets {
	cloned := make(TopicPartitionOffsets, len(o))
	for topic, partitions := range o {
		copied := make(map[int32]int64, len(partitions))
		for partition, offset := range partitions {
			copied[partition] = offset
		}
		cloned[topic] = copied
	}

	return cloned
}

// OffsetSource reports the offsets a consumer group has processed, i.e. the
// offset of the last record it handled on each partition.
type OffsetSource interface {
	ProcessedOffsets(ctx context.Context, group string) (TopicPartitionOffsets, error)
}

// OffsetView answers how far the online service has progressed.
type OffsetView interface {
	MaxTopicPartitionOffset(topic string, partition int32) (int64, bool)
}

type OffsetOption func(*OffsetSynchronizationManager)

func WithSyncInterval(interval time.Duration) OffsetOption {
	return func(m *OffsetSynchronizationManager) {
		m.interval = interval
	}
}

func WithSyncAttempts(attempts uint) OffsetOption {
	return func(m *OffsetSynchronizationManager) {
		m.attempts = attempts
	}
}

func WithOffsetLogger(logger *zerolog.Logger) OffsetOption {
	return func(m *OffsetSynchronizationManager) {
		m.log = logger
	}
}

func WithOffsetMetrics(metrics *Metrics) OffsetOption {
	return func(m *OffsetSynchronizationManager) {
		m.metrics = metrics
	}
}

// OffsetSynchronizationManager caches the progress of the online consumer
// group, refreshed from an OffsetSource on a fixed interval.
type OffsetSynchronizationManager struct {
	source   OffsetSource
	group    string
	interval time.Duration
	attempts uint
	log      *zerolog.Logger
	metrics  *Metrics

	mu      sync.RWMutex
	offsets TopicPartitionOffsets
}

func NewOffsetSynchronizationManager(source OffsetSource, group string, options ...OffsetOption) *OffsetSynchronizationManager {
	m := &OffsetSynchronizationManager{
		source:  source,
		group:   group,
		offsets: TopicPartitionOffsets{},
	}
	for _, option := range options {
		option(m)
	}

	if m.interval <= 0 {
		m.interval = DefaultSyncInterval
	}

	if m.attempts == 0 {
		m.attempts = 3
	}

	if m.log == nil {
		m.log = &log.Logger
	}

	return m
}

// Run synchronizes immediately and then on every interval until ctx ends.
// Failed synchronizations keep the previous cache.
func (m *OffsetSynchronizationManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.Synchronize(ctx); err != nil && ctx.Err() == nil {
			m.log.Err(err).Str("group", m.group).Msg("offset synchronization failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Synchronize replaces the cache with the offsets currently reported by the
// source.
func (m *OffsetSynchronizationManager) Synchronize(ctx context.Context) error {
	var offsets TopicPartitionOffsets
	err := retry.Do(
		func() error {
			var err error
			offsets, err = m.source.ProcessedOffsets(ctx, m.group)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		m.metrics.recordSyncFailure()
		return errors.Wrapf(err, "failed to fetch offsets of %s", m.group)
	}

	m.mu.Lock()
	m.offsets = offsets.clone()
	m.mu.Unlock()

	m.metrics.recordOffsets(offsets)
	m.log.Debug().Str("group", m.group).Int("topics", len(offsets)).Msg("offsets synchronized")

	return nil
}

func (m *OffsetSynchronizationManager) MaxTopicPartitionOffset(topic string, partition int32) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	offset, ok := m.offsets[topic][partition]
	return offset, ok
}

// SetMaxTopicPartitionOffset overrides one cached offset until the next
// synchronization. It lets operators and tests hold a restore at a known
// position.
func (m *OffsetSynchronizationManager) SetMaxTopicPartitionOffset(topic string, partition int32, offset int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	partitions, ok := m.offsets[topic]
	if !ok {
		partitions = map[int32]int64{}
		m.offsets[topic] = partitions
	}
	partitions[partition] = offset
}

// Offsets returns a copy of the cache.
func (m *OffsetSynchronizationManager) Offsets() TopicPartitionOffsets {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.offsets.clone()
}
