package base

import (
	"regexp"
	"strings"
)

// UMLID identifies an element of UML sequence diagrams which can be captured by pattern groups
type UMLID int

// Known UML IDs, in the order they are tried when parsing group names
const (
	UMLSequenceID UMLID = iota
	UMLClient
	UMLRequest
	UMLResponse
	UMLEvent
	UMLService
	UMLMethod
	UMLArguments
)

type umlIDKind int

const (
	umlOptional umlIDKind = iota
	umlMandatory
	umlRequestType
)

var umlIDDefinitions = []struct {
	id   UMLID
	name string
	kind umlIDKind
}{
	{UMLSequenceID, "USID", umlOptional},
	{UMLClient, "UCL", umlMandatory},
	{UMLRequest, "URT", umlRequestType},
	{UMLResponse, "URS", umlRequestType},
	{UMLEvent, "UEV", umlRequestType},
	{UMLService, "US", umlMandatory},
	{UMLMethod, "UM", umlMandatory},
	{UMLArguments, "UA", umlOptional},
}

func (id UMLID) String() string {
	if int(id) < 0 || int(id) >= len(umlIDDefinitions) {
		return "unknown"
	}
	return umlIDDefinitions[id].name
}

// IsRequestType returns true for request, response and event
func (id UMLID) IsRequestType() bool {
	return int(id) >= 0 && int(id) < len(umlIDDefinitions) && umlIDDefinitions[id].kind == umlRequestType
}

// GroupNameDelimiter separates multiple tags in a single group name, e.g. "UCL_and_VAR_client"
const GroupNameDelimiter = "_and_"

var (
	varPartRegex  = regexp.MustCompile(`(?i)^VAR_(\w+)$`)
	plotPartRegex = regexp.MustCompile(`(?i)^P([XY])Data_(\w+)$`)
	umlPartRegex  = buildUMLPartRegex()
)

func buildUMLPartRegex() *regexp.Regexp {
	names := make([]string, len(umlIDDefinitions))
	for i, def := range umlIDDefinitions {
		names[i] = def.name
	}
	return regexp.MustCompile(`(?i)^(` + strings.Join(names, "|") + `)_?(\w*)$`)
}

// GroupMetadata contains the tags parsed from the name of a capture group
type GroupMetadata struct {
	Name       string
	VarName    string           // Alias from "VAR_xxx", empty if none
	UML        map[UMLID]string // UML IDs to custom values, empty value means the captured text is used
	PlotXGraph string           // Graph name from "PXData_xxx"
	PlotYGraph string           // Graph name from "PYData_xxx"
}

// PatternMetadata contains tags of all capture groups in a pattern, indexed by group index
//
// PatternMetadata is immutable once created and can be shared by concurrent workers
type PatternMetadata struct {
	groups []GroupMetadata
}

// NewPatternMetadata parses the names of all capture groups in the pattern
func NewPatternMetadata(pattern *regexp.Regexp, parseUML bool) *PatternMetadata {
	names := pattern.SubexpNames()
	groups := make([]GroupMetadata, len(names))
	for i, name := range names {
		groups[i] = parseGroupName(name, parseUML)
	}
	return &PatternMetadata{groups: groups}
}

func parseGroupName(name string, parseUML bool) GroupMetadata {
	group := GroupMetadata{Name: name}
	if name == "" {
		return group
	}
	for _, part := range strings.Split(name, GroupNameDelimiter) {
		if part == "" {
			continue
		}
		if group.VarName == "" {
			if m := varPartRegex.FindStringSubmatch(part); m != nil {
				group.VarName = m[1]
				continue
			}
		}
		if m := plotPartRegex.FindStringSubmatch(part); m != nil {
			if strings.EqualFold(m[1], "X") {
				group.PlotXGraph = m[2]
			} else {
				group.PlotYGraph = m[2]
			}
			continue
		}
		if parseUML {
			if m := umlPartRegex.FindStringSubmatch(part); m != nil {
				id, ok := lookupUMLID(m[1])
				if !ok {
					continue
				}
				if group.UML == nil {
					group.UML = make(map[UMLID]string, 2)
				}
				group.UML[id] = m[2]
			}
		}
	}
	return group
}

func lookupUMLID(name string) (UMLID, bool) {
	for _, def := range umlIDDefinitions {
		if strings.EqualFold(def.name, name) {
			return def.id, true
		}
	}
	return 0, false
}

// NumGroups returns the numbers of groups including group 0 (the whole match)
func (m *PatternMetadata) NumGroups() int {
	return len(m.groups)
}

// Group returns the metadata of group by index
func (m *PatternMetadata) Group(index int) (GroupMetadata, bool) {
	if index < 0 || index >= len(m.groups) {
		return GroupMetadata{}, false
	}
	return m.groups[index], true
}

// Aliases returns the variable names of all groups that have one, in group order
func (m *PatternMetadata) Aliases() []string {
	aliases := make([]string, 0, len(m.groups))
	for _, g := range m.groups {
		if g.VarName != "" {
			aliases = append(aliases, g.VarName)
		}
	}
	return aliases
}

// ContainsAnyUMLGroup returns true if any group is tagged with UML ID(s)
func (m *PatternMetadata) ContainsAnyUMLGroup() bool {
	for _, g := range m.groups {
		if len(g.UML) > 0 {
			return true
		}
	}
	return false
}

// ContainsPlotGroups returns true if any group is tagged with plot data
func (m *PatternMetadata) ContainsPlotGroups() bool {
	for _, g := range m.groups {
		if g.PlotXGraph != "" || g.PlotYGraph != "" {
			return true
		}
	}
	return false
}

// ContainsConsistentUMLData checks whether all mandatory UML IDs and at least one request type are defined by groups
func (m *PatternMetadata) ContainsConsistentUMLData() bool {
	return m.checkUMLConsistency(func(visit func(g GroupMetadata)) {
		for _, g := range m.groups {
			visit(g)
		}
	})
}

// ConsistentUMLDataForGroups is ContainsConsistentUMLData restricted to the given group indexes, e.g. captured groups
func (m *PatternMetadata) ConsistentUMLDataForGroups(indexes []int) bool {
	if len(indexes) == 0 {
		return false
	}
	return m.checkUMLConsistency(func(visit func(g GroupMetadata)) {
		for _, index := range indexes {
			if g, ok := m.Group(index); ok {
				visit(g)
			}
		}
	})
}

func (m *PatternMetadata) checkUMLConsistency(iterate func(visit func(g GroupMetadata))) bool {
	found := make(map[UMLID]bool, len(umlIDDefinitions))
	iterate(func(g GroupMetadata) {
		for id := range g.UML {
			found[id] = true
		}
	})
	hasRequestType := false
	for _, def := range umlIDDefinitions {
		switch def.kind {
		case umlMandatory:
			if !found[def.id] {
				return false
			}
		case umlRequestType:
			if found[def.id] {
				hasRequestType = true
			}
		}
	}
	return hasRequestType
}
