package we

import (
	"context"
	"testing"
	"time"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
)

// RepositoryValidationSuite checks that a Repository implementation honours
// the compare-and-swap contract the snapshot store relies on.
func NewRepositoryValidationSuite(ctx context.Context, transactor Transactor, repository Repository[ValidationState]) *RepositoryValidationSuite {
	return &RepositoryValidationSuite{
		ctx:        ctx,
		transactor: transactor,
		repository: repository,
		faker:      faker.New(),
	}
}

type RepositoryValidationSuite struct {
	ctx        context.Context
	transactor Transactor
	repository Repository[ValidationState]
	faker      faker.Faker
}

type ValidationState struct {
	Text   string `json:"text"`
	Number int    `json:"number"`
}

const ValidationAggregate AggregateType = "go-test"

func (s *RepositoryValidationSuite) Run(t *testing.T) {
	t.Run("finds nothing for an unknown aggregate", s.FindsNothing)
	t.Run("inserts and finds a snapshot", s.InsertsAndFinds)
	t.Run("rejects a second insert", s.RejectsSecondInsert)
	t.Run("updates at the expected version", s.UpdatesAtExpectedVersion)
	t.Run("rejects an update at a stale version", s.RejectsStaleUpdate)
	t.Run("deletes at the expected version", s.DeletesAtExpectedVersion)
	t.Run("rolls back with the transaction", s.RollsBack)
	t.Run("rejects writes outside a transaction", s.RejectsWritesOutsideTransaction)
}

func (s *RepositoryValidationSuite) MakeSnapshot() Snapshot[ValidationState] {
	id := NewAggregateIdentifier(ValidationAggregate).WithVersion(0)
	now := time.Now().UTC().Truncate(time.Millisecond)

	return Snapshot[ValidationState]{
		Identifier: id,
		Root:       id,
		Audit:      Audit{}.Touch(UserID(s.faker.Person().Name()), now),
		State: ValidationState{
			Text:   s.faker.Lorem().Sentence(10),
			Number: s.faker.IntBetween(0, 1000),
		},
	}
}

func (s *RepositoryValidationSuite) insert(snapshot Snapshot[ValidationState]) error {
	return s.transactor.InTx(s.ctx, func(ctx context.Context) error {
		return s.repository.Insert(ctx, snapshot)
	})
}

func (s *RepositoryValidationSuite) FindsNothing(t *testing.T) {
	found, err := s.repository.Find(s.ctx, NewAggregateIdentifier(ValidationAggregate))
	if !assert.Nil(t, err) {
		return
	}

	assert.Nil(t, found)
}

func (s *RepositoryValidationSuite) InsertsAndFinds(t *testing.T) {
	snapshot := s.MakeSnapshot()
	if !assert.Nil(t, s.insert(snapshot)) {
		return
	}

	found, err := s.repository.Find(s.ctx, snapshot.Identifier)
	if !assert.Nil(t, err) || !assert.NotNil(t, found) {
		return
	}

	assert.Equal(t, snapshot.Identifier, found.Identifier)
	assert.Equal(t, snapshot.State, found.State)
	assert.Equal(t, snapshot.Audit.CreatedBy, found.Audit.CreatedBy)
	assert.True(t, snapshot.Audit.CreatedAt.Equal(found.Audit.CreatedAt))
}

func (s *RepositoryValidationSuite) RejectsSecondInsert(t *testing.T) {
	snapshot := s.MakeSnapshot()
	if !assert.Nil(t, s.insert(snapshot)) {
		return
	}

	err := s.insert(snapshot)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func (s *RepositoryValidationSuite) UpdatesAtExpectedVersion(t *testing.T) {
	snapshot := s.MakeSnapshot()
	if !assert.Nil(t, s.insert(snapshot)) {
		return
	}

	updated := snapshot
	updated.Identifier = snapshot.Identifier.Next()
	updated.State.Number++

	err := s.transactor.InTx(s.ctx, func(ctx context.Context) error {
		return s.repository.Update(ctx, updated, snapshot.Version())
	})
	if !assert.Nil(t, err) {
		return
	}

	found, err := s.repository.Find(s.ctx, snapshot.Identifier)
	if !assert.Nil(t, err) || !assert.NotNil(t, found) {
		return
	}

	assert.Equal(t, int64(1), found.Version())
	assert.Equal(t, updated.State, found.State)
}

func (s *RepositoryValidationSuite) RejectsStaleUpdate(t *testing.T) {
	snapshot := s.MakeSnapshot()
	if !assert.Nil(t, s.insert(snapshot)) {
		return
	}

	updated := snapshot
	updated.Identifier = snapshot.Identifier.WithVersion(5)
	updated.State.Text = s.faker.Lorem().Word()

	err := s.transactor.InTx(s.ctx, func(ctx context.Context) error {
		return s.repository.Update(ctx, updated, 4)
	})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	found, err := s.repository.Find(s.ctx, snapshot.Identifier)
	if !assert.Nil(t, err) || !assert.NotNil(t, found) {
		return
	}
	assert.Equal(t, snapshot.State, found.State)
}

func (s *RepositoryValidationSuite) DeletesAtExpectedVersion(t *testing.T) {
	snapshot := s.MakeSnapshot()
	if !assert.Nil(t, s.insert(snapshot)) {
		return
	}

	err := s.transactor.InTx(s.ctx, func(ctx context.Context) error {
		return s.repository.Delete(ctx, snapshot.Identifier, snapshot.Version()+1)
	})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	err = s.transactor.InTx(s.ctx, func(ctx context.Context) error {
		return s.repository.Delete(ctx, snapshot.Identifier, snapshot.Version())
	})
	if !assert.Nil(t, err) {
		return
	}

	found, err := s.repository.Find(s.ctx, snapshot.Identifier)
	assert.Nil(t, err)
	assert.Nil(t, found)
}

func (s *RepositoryValidationSuite) RollsBack(t *testing.T) {
	snapshot := s.MakeSnapshot()
	failure := assert.AnError

	err := s.transactor.InTx(s.ctx, func(ctx context.Context) error {
		if err := s.repository.Insert(ctx, snapshot); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	found, err := s.repository.Find(s.ctx, snapshot.Identifier)
	assert.Nil(t, err)
	assert.Nil(t, found)
}

func (s *RepositoryValidationSuite) RejectsWritesOutsideTransaction(t *testing.T) {
	err := s.repository.Insert(s.ctx, s.MakeSnapshot())
	assert.ErrorIs(t, err, ErrNoTransaction)
}
