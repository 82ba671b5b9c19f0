package we

import (
	"context"
	"time"
)

type UserID string

const SystemUser UserID = "system"

type userKey struct{}

// WithUser records the user on whose behalf commands in ctx are executed.
func WithUser(ctx context.Context, user UserID) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func UserFrom(ctx context.Context) UserID {
	if user, ok := ctx.Value(userKey{}).(UserID); ok && user != "" {
		return user
	}

	return SystemUser
}

type Audit struct {
	CreatedBy      UserID    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedBy UserID    `json:"lastModifiedBy"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

func (a Audit) Touch(user UserID, at time.Time) Audit {
	if a.CreatedBy == "" {
		a.CreatedBy = user
		a.CreatedAt = at
	}
	a.LastModifiedBy = user
	a.LastModifiedAt = at

	return a
}

// Snapshot is the persisted state of an aggregate at one version. Snapshots
// are values: every change produces a new one.
type Snapshot[S any] struct {
	Identifier AggregateIdentifier `json:"identifier"`
	Root       AggregateIdentifier `json:"root"`
	Audit      Audit               `json:"audit"`
	State      S                   `json:"state"`
}

func NewSnapshot[S any](id AggregateIdentifier, state S) Snapshot[S] {
	return Snapshot[S]{Identifier: id.WithVersion(InitialVersion), State: state}
}

func (s Snapshot[S]) Version() int64 {
	return s.Identifier.Version
}

func (s Snapshot[S]) Exists() bool {
	return s.Identifier.Version > InitialVersion
}

// RootContext is the aggregate whose id keys the partition of every event
// of this snapshot. Aggregates without an explicit root are their own root.
func (s Snapshot[S]) RootContext() AggregateIdentifier {
	if s.Root.IsZero() {
		return s.Identifier.WithVersion(0)
	}

	return s.Root
}

func (s Snapshot[S]) WithRoot(root AggregateIdentifier) Snapshot[S] {
	s.Root = root
	return s
}
