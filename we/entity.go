package we

type EntityType string

func (et EntityType) String() string {
	return string(et)
}

type EntityTyped interface {
	EntityType() EntityType
}

func EntityTypeOf(state any) EntityType {
	if named, ok := state.(EntityTyped); ok {
		return named.EntityType()
	}

	return EntityType(NameOf(state))
}

// Entity is the rendered state of an aggregate at a revision. State is never
// nil; an aggregate without events renders as the zero value of T.
type Entity[T any] struct {
	Aggregate AggregateId
	Revision  Revision
	Type      EntityType
	State     *T
}

func (e *Entity[T]) Initialized() bool {
	return e.Revision != InitialRevision
}
