package logparser

// Dialect recognises failures written in one test framework's log convention.
//
// Match must not keep state between calls and must never fail: a document it
// does not understand simply yields no candidates.
type Dialect interface {
	// Name identifies the dialect in logs and configuration.
	Name() string
	// Match returns the failures found in the (already cleaned) log text.
	Match(text string) []Candidate
}

// Deduplicator is implemented by dialects whose results may contain the same
// test more than once and should be collapsed by the Extractor.
type Deduplicator interface {
	Deduplicate() bool
}

// Dialect names accepted by DialectsByName.
const (
	DialectJest    = "jest"
	DialectGoTest  = "gotest"
	DialectGeneric = "generic"
)

// DefaultDialects returns the primary dialect followed by the generic fallback.
func DefaultDialects() []Dialect {
	return []Dialect{JestDialect{}, GenericDialect{}}
}

// DialectsByName builds an ordered dialect list from configuration names.
// Unknown names are returned in unknown so callers can report them.
func DialectsByName(names []string) (dialects []Dialect, unknown []string) {
	for _, name := range names {
		switch name {
		case DialectJest:
			dialects = append(dialects, JestDialect{})
		case DialectGoTest:
			dialects = append(dialects, GoTestDialect{})
		case DialectGeneric:
			dialects = append(dialects, GenericDialect{})
		default:
			unknown = append(unknown, name)
		}
	}
	return dialects, unknown
}
