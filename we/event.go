package we

import (
	"strings"

	"github.com/pkg/errors"
)

type EventID string

func (id EventID) String() string {
	return string(id)
}

type EventType string

func (et EventType) String() string {
	return string(et)
}

type EventTyped interface {
	EventType() EventType
}

type CorrelationID string

func (id CorrelationID) String() string {
	return string(id)
}

type Data struct {
	Encoding string `json:"encoding"`
	Data     []byte `json:"data"`
}

type AggregateId struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type EncodedAggregateId string

func (id AggregateId) Encode() EncodedAggregateId {
	return EncodedAggregateId(strings.Join([]string{id.Type, id.Key}, "."))
}

func (id AggregateId) String() string {
	return id.Encode().String()
}

func (id EncodedAggregateId) String() string {
	return string(id)
}

func (id EncodedAggregateId) Decode() (*AggregateId, error) {
	separated := strings.Split(string(id), ".")
	if len(separated) < 2 {
		return nil, errors.New("expected . delimiter in aggregate id")
	}

	return &AggregateId{
		Type: separated[0],
		Key:  strings.Join(separated[1:], "."),
	}, nil
}

type DomainEvent any

func EventTypeOf(event DomainEvent) EventType {
	if typed, ok := event.(EventTyped); ok {
		return typed.EventType()
	}

	return EventType(NameOf(event))
}

type RecordedEventMetadata struct {
	CausationId   EventID       `json:"causationId,omitempty"`
	CorrelationId CorrelationID `json:"correlationId,omitempty"`
}

type RecordedEvent struct {
	AggregateId AggregateId           `json:"aggregate"`
	Revision    Revision              `json:"revision"`
	EventID     EventID               `json:"id"`
	EventType   EventType             `json:"type"`
	Timestamp   Timestamp             `json:"timestamp"`
	Metadata    RecordedEventMetadata `json:"metadata"`
	Data        Data                  `json:"data"`
}
