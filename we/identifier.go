package we

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// InitialVersion is the version of a snapshot that has not been persisted
// yet. The first event of an aggregate carries version 0.
const InitialVersion int64 = -1

type AggregateType string

func (t AggregateType) String() string {
	return string(t)
}

// AggregateIdentifier names one version of one aggregate.
type AggregateIdentifier struct {
	Type    AggregateType `json:"type"`
	ID      string        `json:"id"`
	Version int64         `json:"version"`
}

func NewAggregateIdentifier(t AggregateType) AggregateIdentifier {
	return AggregateIdentifier{Type: t, ID: uuid.NewString(), Version: InitialVersion}
}

func (id AggregateIdentifier) WithVersion(version int64) AggregateIdentifier {
	id.Version = version
	return id
}

func (id AggregateIdentifier) Next() AggregateIdentifier {
	return id.WithVersion(id.Version + 1)
}

// SameAggregate compares type and id, ignoring the version.
func (id AggregateIdentifier) SameAggregate(other AggregateIdentifier) bool {
	return id.Type == other.Type && id.ID == other.ID
}

func (id AggregateIdentifier) IsZero() bool {
	return id.Type == "" && id.ID == ""
}

type EncodedAggregateIdentifier string

// Encode renders the identifier without its version as "type.id".
func (id AggregateIdentifier) Encode() EncodedAggregateIdentifier {
	return EncodedAggregateIdentifier(strings.Join([]string{string(id.Type), id.ID}, "."))
}

func (id AggregateIdentifier) String() string {
	return fmt.Sprintf("%s@%d", id.Encode(), id.Version)
}

func (id EncodedAggregateIdentifier) String() string {
	return string(id)
}

func (id EncodedAggregateIdentifier) Decode() (AggregateIdentifier, error) {
	separated := strings.Split(string(id), ".")
	if len(separated) < 2 {
		return AggregateIdentifier{}, errors.New("expected . delimiter in aggregate identifier")
	}

	return AggregateIdentifier{
		Type:    AggregateType(separated[0]),
		ID:      strings.Join(separated[1:], "."),
		Version: InitialVersion,
	}, nil
}
