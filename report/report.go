// Package report writes search notifications to text or JSON lines
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/relex/slog-analyzer/base"
)

// Format defines the output format of Writer
type Format string

// Supported formats
const (
	FormatText Format = "text" // one line per matched record followed by captured groups
	FormatJSON Format = "json" // one JSON object per matched record and per notification
)

// RecordFetcher provides decoded records by index, e.g. msgcache.Cache
type RecordFetcher interface {
	Fetch(index int) *base.LogRecord
}

// Writer formats notifications with the records they refer to
//
// Writer is not safe for concurrent use
type Writer struct {
	format  Format
	out     *bufio.Writer
	fetcher RecordFetcher
	schema  base.LogSchema
	total   int
}

type jsonGroup struct {
	Group int    `json:"group"`
	Text  string `json:"text"`
	From  int    `json:"from"`
	To    int    `json:"to"`
}

type jsonMatch struct {
	Request int64              `json:"request"`
	Index   int                `json:"index"`
	MsgID   int                `json:"msgId"`
	Time    string             `json:"time,omitempty"`
	Fields  map[string]string  `json:"fields"`
	Groups  []jsonGroup        `json:"groups,omitempty"`
	UML     map[string]string  `json:"uml,omitempty"`
	PlotX   map[string]float64 `json:"plotX,omitempty"`
	PlotY   map[string]float64 `json:"plotY,omitempty"`
}

type jsonStatus struct {
	Request           int64  `json:"request"`
	State             string `json:"state"`
	Progress          int    `json:"progress"`
	Matches           int    `json:"matches"`
	TotalMatches      int    `json:"totalMatches"`
	UMLDuplicateFound bool   `json:"umlDuplicateFound,omitempty"`
}

var jsonConfig = sonic.ConfigStd

// NewWriter creates a Writer of the given format
func NewWriter(format Format, out io.Writer, fetcher RecordFetcher, schema base.LogSchema) (*Writer, error) {
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("unsupported output format '%s'", format)
	}
	return &Writer{
		format:  format,
		out:     bufio.NewWriter(out),
		fetcher: fetcher,
		schema:  schema,
		total:   0,
	}, nil
}

// Write writes all matches in the notification and then its status, and flushes
func (w *Writer) Write(n base.ProgressNotification) error {
	w.total += len(n.Matches)
	var err error
	switch w.format {
	case FormatJSON:
		err = w.writeJSON(n)
	default:
		err = w.writeText(n)
	}
	if err != nil {
		return err
	}
	return w.out.Flush()
}

// TotalMatches returns the numbers of matches written so far
func (w *Writer) TotalMatches() int {
	return w.total
}

func (w *Writer) writeText(n base.ProgressNotification) error {
	for _, item := range n.Matches {
		record := w.fetcher.Fetch(item.Metadata.MsgIndex)
		fmt.Fprintf(w.out, "#%d %s\n", item.Metadata.MsgIndex, strings.Join(nonEmptyFields(record.Fields), " "))
		for _, m := range item.Matches {
			fmt.Fprintf(w.out, "  [%d] %s\n", m.GroupIndex, m.Text)
		}
	}
	if n.State != base.RequestProgress || len(n.Matches) == 0 {
		fmt.Fprintf(w.out, "-- %s %d%%: %d matches\n", n.State, n.Progress, w.total)
	}
	if n.UMLDuplicateFound {
		fmt.Fprintln(w.out, "-- warning: duplicate UML request types in some records, only the first is used")
	}
	return nil
}

func (w *Writer) writeJSON(n base.ProgressNotification) error {
	encoder := jsonConfig.NewEncoder(w.out)
	for _, item := range n.Matches {
		if err := encoder.Encode(w.newJSONMatch(n.RequestID, item)); err != nil {
			return err
		}
	}
	return encoder.Encode(jsonStatus{
		Request:           int64(n.RequestID),
		State:             n.State.String(),
		Progress:          n.Progress,
		Matches:           len(n.Matches),
		TotalMatches:      w.total,
		UMLDuplicateFound: n.UMLDuplicateFound,
	})
}

func (w *Writer) newJSONMatch(id base.RequestID, item base.MatchedItem) jsonMatch {
	record := w.fetcher.Fetch(item.Metadata.MsgIndex)
	fieldNames := w.schema.GetFieldNames()
	fields := make(map[string]string, len(fieldNames))
	for i, name := range fieldNames {
		if i < len(record.Fields) && record.Fields[i] != "" {
			fields[name] = record.Fields[i]
		}
	}
	out := jsonMatch{
		Request: int64(id),
		Index:   item.Metadata.MsgIndex,
		MsgID:   item.Metadata.MsgID,
		Fields:  fields,
		PlotX:   item.Metadata.Plot.XData,
		PlotY:   item.Metadata.Plot.YData,
	}
	if !item.Metadata.Timestamp.IsZero() {
		out.Time = item.Metadata.Timestamp.Format(time.RFC3339Nano)
	}
	for _, m := range item.Matches {
		out.Groups = append(out.Groups, jsonGroup{Group: m.GroupIndex, Text: m.Text, From: m.Range.From, To: m.Range.To})
	}
	if item.Metadata.UML.Fulfilled {
		out.UML = make(map[string]string, len(item.Metadata.UML.Data))
		for umlID, data := range item.Metadata.UML.Data {
			out.UML[umlID.String()] = data.Text
		}
	}
	return out
}

func nonEmptyFields(fields base.LogFields) []string {
	values := make([]string, 0, len(fields))
	for _, v := range fields {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}
