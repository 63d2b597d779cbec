package query

// Kind decides how a raw parameter is coerced before it reaches a store.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	Time
	// Object fields can be projected but not filtered or sorted.
	Object
)

func (k Kind) comparable() bool { return k != Object }

// Field maps an API name to its storage names.
type Field struct {
	Column string // SQL column
	BSON   string // document key
	Kind   Kind
	// JSON is the key the field is serialized under when the API name is an alias.
	JSON string
}

// Schema is the allow-list a Query is validated against. Anything not listed
// here can never reach a WHERE clause or a bson filter.
type Schema struct {
	Fields         map[string]Field
	Hidden         []string
	DefaultExclude []string
	DefaultSort    string
}

func (s Schema) lookup(name string) (Field, bool) {
	if s.isHidden(name) {
		return Field{}, false
	}
	f, ok := s.Fields[name]
	return f, ok
}

func (s Schema) isHidden(name string) bool {
	for _, h := range s.Hidden {
		if h == name {
			return true
		}
	}
	return false
}

// canonical resolves an alias to the field it stands for.
func (s Schema) canonical(name string) string {
	if f, ok := s.Fields[name]; ok && f.JSON != "" {
		if _, known := s.Fields[f.JSON]; known {
			return f.JSON
		}
	}
	return name
}

func (s Schema) jsonKey(name string) string {
	if f, ok := s.Fields[name]; ok && f.JSON != "" {
		return f.JSON
	}
	return name
}
