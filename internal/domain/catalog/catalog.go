package catalog

// Keyword is a stored keyword a phrase can be attached to.
type Keyword struct {
	ID        int64
	Term      string
	DomainID  int64
	VersionID *int64
}

// Phrase is a stored question text under a keyword.
type Phrase struct {
	ID        int64
	Text      string
	KeywordID int64
}

// Scope selects where a keyword is looked up: the version when set, else the domain.
type Scope struct {
	DomainID  int64
	VersionID *int64
}

// ByVersion reports whether the lookup is version-scoped.
func (s Scope) ByVersion() bool { return s.VersionID != nil }
