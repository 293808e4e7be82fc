package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/weegigs/wee-ledger-go/we"
)

const schema = `
create table if not exists events (
	aggregate   text not null,
	revision    text not null,
	id          text not null,
	type        text not null,
	timestamp   text not null,
	encoding    text not null,
	data        blob not null,
	causation   text not null default '',
	correlation text not null default '',
	primary key (aggregate, revision)
) without rowid;
`

// EventStore keeps events in a single SQLite table keyed by aggregate and
// revision. Publishes run in an immediate transaction so the expected revision
// check and the insert cannot interleave with another writer.
type EventStore struct {
	db       *sql.DB
	revision *we.RevisionGenerator
}

// Open opens, and if necessary creates, the database at path.
func Open(ctx context.Context, path string) (*EventStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	db.SetMaxOpenConns(1)

	store, err := NewEventStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func NewEventStore(ctx context.Context, db *sql.DB) (*EventStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Wrap(err, "failed to create events table")
	}

	return &EventStore{db: db, revision: we.NewRevisionGenerator()}, nil
}

func (s *EventStore) Close() error {
	return s.db.Close()
}

func (s *EventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select revision, id, type, timestamp, encoding, data, causation, correlation
		   from events where aggregate = ? order by revision`,
		id.Encode().String(),
	)
	if err != nil {
		return we.Aggregate{}, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	var events []we.RecordedEvent
	for rows.Next() {
		event := we.RecordedEvent{AggregateId: id}
		err := rows.Scan(
			&event.Revision,
			&event.EventID,
			&event.EventType,
			&event.Timestamp,
			&event.Data.Encoding,
			&event.Data.Data,
			&event.Metadata.CausationId,
			&event.Metadata.CorrelationId,
		)
		if err != nil {
			return we.Aggregate{}, errors.Wrap(err, "failed to scan event")
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return we.Aggregate{}, err
	}

	return we.Aggregate{
		Id:       id,
		Events:   events,
		Revision: we.RevisionOf(events),
	}, nil
}

func (s *EventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) (we.Revision, error) {
	if len(events) == 0 {
		return "", we.NoEvents
	}

	data := make([]we.Data, len(events))
	for i, event := range events {
		encoded, err := we.MarshalToData(event)
		if err != nil {
			return "", err
		}
		data[i] = encoded
	}

	key := aggregateId.Encode().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var latest sql.NullString
	err = tx.QueryRowContext(ctx, `select max(revision) from events where aggregate = ?`, key).Scan(&latest)
	if err != nil {
		return "", errors.Wrap(err, "failed to read latest revision")
	}

	current := we.InitialRevision
	if latest.Valid {
		current = we.Revision(latest.String)
	}

	if options.ExpectedRevision != "" && options.ExpectedRevision != current {
		return "", we.RevisionConflict
	}

	now := time.Now()
	timestamp := we.TimestampFromTime(now)

	var revision we.Revision
	for i, event := range events {
		revision = s.revision.After(now, current)
		current = revision

		_, err := tx.ExecContext(
			ctx,
			`insert into events (aggregate, revision, id, type, timestamp, encoding, data, causation, correlation)
			 values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key,
			revision,
			revision,
			we.EventTypeOf(event),
			timestamp,
			data[i].Encoding,
			data[i].Data,
			options.CausationId,
			options.CorrelationId,
		)
		if err != nil {
			return "", errors.Wrap(err, "failed to insert event")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit events")
	}

	return revision, nil
}
