package analyzer

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/relex/slog-analyzer/base"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type portionState int

const (
	portionSuccess portionState = iota
	portionError
)

// batchItem is a record prepared for matching
type batchItem struct {
	metadata base.ItemMetadata
	text     string
}

// portionResult is the outcome of matching one batch
type portionResult struct {
	state             portionState
	matches           base.MatchesPack
	processed         int
	umlDuplicateFound bool
	err               error
}

// patternWorker matches batches against compiled patterns
//
// It holds no mutable state and may be shared by goroutines
type patternWorker struct {
	features base.AnalysisFeatures
}

// analyzeBatch runs the pattern on every item and collects non-empty captures of matched items
//
// Any panic during matching fails the whole batch
func (w patternWorker) analyzeBatch(pattern *regexp.Regexp, metadata *base.PatternMetadata, batch []batchItem) (result portionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = portionResult{
				state:     portionError,
				matches:   nil,
				processed: len(batch),
				err:       fmt.Errorf("%w: %v", base.ErrChunkMatchFailure, r),
			}
		}
	}()

	analyzeUML := w.features.UML && metadata.ContainsAnyUMLGroup() && metadata.ContainsConsistentUMLData()
	analyzePlot := w.features.Plot && metadata.ContainsPlotGroups()

	result.state = portionSuccess
	result.processed = len(batch)
	for _, item := range batch {
		loc := pattern.FindStringSubmatchIndex(item.text)
		if loc == nil {
			continue
		}
		matches := make([]base.FoundMatch, 0, len(loc)/2)
		for group := 1; group < len(loc)/2; group++ {
			start, end := loc[group*2], loc[group*2+1]
			if start < 0 || end <= start {
				continue
			}
			matches = append(matches, base.FoundMatch{
				Text:       item.text[start:end],
				Range:      base.IntRange{From: start, To: end - 1},
				GroupIndex: group,
			})
		}
		itemMetadata := item.metadata
		if analyzeUML {
			var duplicate bool
			itemMetadata.UML, duplicate = deriveUMLInfo(metadata, matches)
			result.umlDuplicateFound = result.umlDuplicateFound || duplicate
		}
		if analyzePlot {
			itemMetadata.Plot = derivePlotInfo(metadata, matches)
		}
		result.matches = append(result.matches, base.MatchedItem{
			Metadata: itemMetadata,
			Matches:  matches,
		})
	}
	return result
}

// deriveUMLInfo collects UML elements from captured groups; the first capture of each ID wins
//
// Returns true as the 2nd value if more than one request, response or event is captured
func deriveUMLInfo(metadata *base.PatternMetadata, matches []base.FoundMatch) (base.UMLInfo, bool) {
	groupIndexes := make([]int, len(matches))
	for i, m := range matches {
		groupIndexes[i] = m.GroupIndex
	}
	info := base.UMLInfo{
		Fulfilled: metadata.ConsistentUMLDataForGroups(groupIndexes),
	}
	if !info.Fulfilled {
		return info, false
	}
	info.Data = make(map[base.UMLID]base.UMLData, 8)
	duplicate := false
	requestTypeFound := false
	for _, m := range matches {
		group, _ := metadata.Group(m.GroupIndex)
		ids := maps.Keys(group.UML)
		slices.Sort(ids)
		for _, id := range ids {
			customValue := group.UML[id]
			if id.IsRequestType() {
				if requestTypeFound {
					duplicate = true
					continue
				}
				requestTypeFound = true
			}
			if _, exists := info.Data[id]; exists {
				continue
			}
			if customValue != "" {
				info.Data[id] = base.UMLData{Text: customValue, CustomValue: true}
			} else {
				info.Data[id] = base.UMLData{Text: m.Text, Range: m.Range}
			}
		}
	}
	return info, duplicate
}

// derivePlotInfo parses plot values from captured groups; unparsable values are skipped
func derivePlotInfo(metadata *base.PatternMetadata, matches []base.FoundMatch) base.PlotInfo {
	var info base.PlotInfo
	for _, m := range matches {
		group, _ := metadata.Group(m.GroupIndex)
		if group.PlotXGraph == "" && group.PlotYGraph == "" {
			continue
		}
		value, err := strconv.ParseFloat(m.Text, 64)
		if err != nil {
			continue
		}
		if group.PlotXGraph != "" {
			if info.XData == nil {
				info.XData = make(map[string]float64, 2)
			}
			info.XData[group.PlotXGraph] = value
		}
		if group.PlotYGraph != "" {
			if info.YData == nil {
				info.YData = make(map[string]float64, 2)
			}
			info.YData[group.PlotYGraph] = value
		}
	}
	return info
}
