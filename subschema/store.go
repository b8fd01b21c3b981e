package subschema

// Record is an entity owned by a subschema. Key is the string form of its id;
// lookups compare keys by value, so a numeric id 0 matches the key "0".
type Record interface {
	Key() string
}

// Connection is the envelope returned by list lookups. Items may contain nil
// entries for keys without a record, and Total always equals len(Items).
type Connection[T any] struct {
	Items []*T `json:"items"`
	Total int  `json:"total"`
}

func newConnection[T any](items []*T) *Connection[T] {
	if items == nil {
		items = []*T{}
	}
	return &Connection[T]{
		Items: items,
		Total: len(items),
	}
}

// Store is a read-only, in-memory record collection.
type Store[T Record] struct {
	records []T
}

func NewStore[T Record](records []T) *Store[T] {
	return &Store[T]{records: append([]T(nil), records...)}
}

// GetByKey returns the first record whose key equals id.
func (s *Store[T]) GetByKey(id string) (*T, bool) {
	for i := range s.records {
		if s.records[i].Key() == id {
			r := s.records[i]
			return &r, true
		}
	}
	return nil, false
}

// ListByKeys answers every id in order. Unknown ids keep their position as a
// nil entry.
func (s *Store[T]) ListByKeys(ids []string) *Connection[T] {
	items := make([]*T, len(ids))
	for i, id := range ids {
		items[i], _ = s.GetByKey(id)
	}
	return newConnection(items)
}

func (s *Store[T]) ListAll() *Connection[T] {
	items := make([]*T, len(s.records))
	for i := range s.records {
		r := s.records[i]
		items[i] = &r
	}
	return newConnection(items)
}
