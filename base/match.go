package base

import (
	"time"
)

// IntRange is an inclusive range of character offsets
type IntRange struct {
	From int
	To   int
}

// Overlaps returns true if any offset is inside both ranges
func (r IntRange) Overlaps(other IntRange) bool {
	return r.From <= other.To && other.From <= r.To
}

// FoundMatch is a non-empty capture of a pattern group
type FoundMatch struct {
	Text       string
	Range      IntRange // Offsets in the searchable string
	GroupIndex int      // Capture group index, never 0
}

// ItemMetadata describes a record in a searchable string batch
type ItemMetadata struct {
	MsgID       int                          // Index in the unfiltered source
	MsgIndex    int                          // Index in the main (filtered) table
	FieldRanges map[LogFieldLocator]IntRange // Offsets of each searched field in the searchable string
	StrSize     int                          // Length of the searchable string
	MsgSize     int                          // Raw length of the record
	Timestamp   time.Time
	UML         UMLInfo
	Plot        PlotInfo
}

// MatchedItem is a record with at least one match
type MatchedItem struct {
	Metadata ItemMetadata
	Matches  []FoundMatch
}

// MatchesPack is an ordered list of matched records
type MatchesPack []MatchedItem

// UMLData is a captured UML element, either from the matched text or from a custom value in the group name
type UMLData struct {
	Text        string
	Range       IntRange // Offsets in the searchable string, empty for custom values
	CustomValue bool
}

// UMLInfo contains UML sequence elements derived from a record's matches
type UMLInfo struct {
	Fulfilled bool
	Data      map[UMLID]UMLData
}

// PlotInfo contains plot values derived from a record's matches, by graph name
type PlotInfo struct {
	XData map[string]float64
	YData map[string]float64
}

// Empty returns true if no plot value has been derived
func (p PlotInfo) Empty() bool {
	return len(p.XData) == 0 && len(p.YData) == 0
}
