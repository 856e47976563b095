package registry

// Exercise is one entry in the canonical exercise catalogue.
//
// Exercises are read-mostly: the catalogue is loaded once at startup and
// cached for the lifetime of the process. PhoneticCode and SynonymCodes are
// precomputed at load time so the resolver never encodes catalogue names on
// the request path.
type Exercise struct {
	// ID is the canonical exercise identifier (e.g., "barbell-bench-press").
	ID string `yaml:"id"`

	// Name is the canonical display name (e.g., "Barbell Bench Press").
	Name string `yaml:"name"`

	// Synonyms lists alternate spoken names that resolve to this exercise
	// (e.g., "bench", "bench press", "flat bench").
	Synonyms []string `yaml:"synonyms"`

	// Bodyweight marks movement families for which external load is not
	// applicable. Extracted weights for these exercises are discarded.
	Bodyweight bool `yaml:"bodyweight"`

	// PhoneticCode is the precomputed phonetic code of Name.
	// Populated by the store at load time; ignored in seed files.
	PhoneticCode string `yaml:"-"`

	// SynonymCodes holds the precomputed phonetic code of each synonym,
	// index-aligned with Synonyms. Populated at load time.
	SynonymCodes []string `yaml:"-"`
}
