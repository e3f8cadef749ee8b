package model

// CitationType is the kind of source a citation marker points at
type CitationType string

const (
	CitationNote      CitationType = "Note"
	CitationEvent     CitationType = "Event"
	CitationBiography CitationType = "Biography"
)

// ParsedCitation is a grammar-conformant citation marker found in text.
// Start and End are byte offsets into the text the citation was parsed from.
type ParsedCitation struct {
	Type         CitationType `json:"type"`
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Relationship string       `json:"relationship,omitempty"` // Biography only
	Raw          string       `json:"raw"`
	Start        int          `json:"start"`
	End          int          `json:"end"`
}

// SegmentType distinguishes plain text from citation segments
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentCitation SegmentType = "citation"
)

// TextSegment is a contiguous slice of narrative text used for rendering
type TextSegment struct {
	Type     SegmentType     `json:"type"`
	Content  string          `json:"content"`
	Citation *ParsedCitation `json:"citation,omitempty"`
}

// SourceIDSet holds the ids that may legitimately be cited
type SourceIDSet struct {
	Notes   map[string]struct{} `json:"-"`
	Events  map[string]struct{} `json:"-"`
	Persons map[string]struct{} `json:"-"`
}

// NewSourceIDSet creates an empty id set
func NewSourceIDSet() SourceIDSet {
	return SourceIDSet{
		Notes:   make(map[string]struct{}),
		Events:  make(map[string]struct{}),
		Persons: make(map[string]struct{}),
	}
}

// Add records id as citable for the given type
func (s *SourceIDSet) Add(t CitationType, id string) {
	if id == "" {
		return
	}
	switch t {
	case CitationNote:
		if s.Notes == nil {
			s.Notes = make(map[string]struct{})
		}
		s.Notes[id] = struct{}{}
	case CitationEvent:
		if s.Events == nil {
			s.Events = make(map[string]struct{})
		}
		s.Events[id] = struct{}{}
	case CitationBiography:
		if s.Persons == nil {
			s.Persons = make(map[string]struct{})
		}
		s.Persons[id] = struct{}{}
	}
}

// Contains reports whether id is citable for the given type
func (s SourceIDSet) Contains(t CitationType, id string) bool {
	var set map[string]struct{}
	switch t {
	case CitationNote:
		set = s.Notes
	case CitationEvent:
		set = s.Events
	case CitationBiography:
		set = s.Persons
	}
	_, ok := set[id]
	return ok
}
