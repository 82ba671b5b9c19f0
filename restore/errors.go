package restore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/we"
)

var (
	// ErrRestoreAheadOfOnline postpones a record until the online service has
	// committed past it. The record is not acknowledged and is redelivered.
	ErrRestoreAheadOfOnline = errors.New("restore-ahead-of-online")
	ErrUnhandledRecord      = errors.New("unhandled-record")
	ErrAmbiguousRecord      = errors.New("ambiguous-record")
)

type RestoreAheadOfOnlineError struct {
	Position we.Position
	Online   int64
	Known    bool
}

func RestoreAheadOfOnline(position we.Position, online int64, known bool) error {
	return &RestoreAheadOfOnlineError{Position: position, Online: online, Known: known}
}

func (e *RestoreAheadOfOnlineError) Error() string {
	if !e.Known {
		return fmt.Sprintf("record %s is ahead of online service: no committed offset known", e.Position)
	}

	return fmt.Sprintf("record %s is ahead of online service at offset %d", e.Position, e.Online)
}

func (e *RestoreAheadOfOnlineError) Is(target error) bool {
	return target == ErrRestoreAheadOfOnline
}

type UnhandledRecordError struct {
	Key      we.MessageKey
	Position we.Position
}

func UnhandledRecord(record we.Record) error {
	return &UnhandledRecordError{Key: record.Key, Position: record.Position}
}

func (e *UnhandledRecordError) Error() string {
	return fmt.Sprintf("no restore strategy handles %s record at %s", e.Key.Kind(), e.Position)
}

func (e *UnhandledRecordError) Is(target error) bool {
	return target == ErrUnhandledRecord
}

type AmbiguousRecordError struct {
	Position   we.Position
	Strategies []string
}

func (e *AmbiguousRecordError) Error() string {
	return fmt.Sprintf("record at %s is claimed by %s", e.Position, strings.Join(e.Strategies, ", "))
}

func (e *AmbiguousRecordError) Is(target error) bool {
	return target == ErrAmbiguousRecord
}

// EndsReplay reports whether err stops the replay instead of redelivering the
// record: no strategy, or more than one exclusive strategy, claims it.
func EndsReplay(err error) bool {
	return errors.Is(err, ErrUnhandledRecord) || errors.Is(err, ErrAmbiguousRecord)
}
