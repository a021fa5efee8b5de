package run

import (
	"fmt"
	"regexp"

	"github.com/relex/gotils/channels"
	"github.com/relex/slog-analyzer/analyzer"
	"github.com/relex/slog-analyzer/base"
)

// SearchRequest defines one search over the launched source
type SearchRequest struct {
	Pattern    string   // regular expression, with optional UML and plot group names
	From       int      // first record index
	Count      int      // 0 or negative for all records from From
	Threads    int      // 0 or negative for the maximum
	Continuous bool     // keep searching appended records until stopped
	Fields     []string // glob patterns of fields to search in, default to the configured ones
}

// Search runs the request and passes every notification to handle, until the request finishes or stop is signaled
//
// Continuous requests never finish by themselves. Stopping cancels the request and returns nil.
func (a *Analysis) Search(req SearchRequest, stop channels.Awaitable, handle func(n base.ProgressNotification)) error {
	params, metadata, err := a.newRequestParameters(req)
	if err != nil {
		return err
	}
	consumer := analyzer.NewChannelConsumer()
	defer consumer.Close()

	id := a.Controller.RequestAnalyze(consumer, params, metadata)
	if id == base.InvalidRequestID {
		return fmt.Errorf("request rejected: from=%d count=%d size=%d", params.From, params.Count, a.Source.Size())
	}
	slogger := a.logger.WithField("search", id)
	slogger.Infof("search [%d, +%d) continuous=%t threads=%d", params.From, params.Count, params.Continuous, params.ThreadCount)
	for {
		select {
		case n := <-consumer.Notifications():
			handle(n)
			switch n.State {
			case base.RequestSuccess:
				return nil
			case base.RequestError:
				return fmt.Errorf("search %d failed, see logs", id)
			}
		case <-stop.Channel():
			slogger.Info("stopped")
			a.Controller.CancelRequest(consumer, id)
			return nil
		}
	}
}

func (a *Analysis) newRequestParameters(req SearchRequest) (base.RequestParameters, *base.PatternMetadata, error) {
	pattern, err := regexp.Compile(req.Pattern)
	if err != nil {
		return base.RequestParameters{}, nil, fmt.Errorf("%w: %v", base.ErrInvalidPattern, err)
	}
	fields := a.fields
	if len(req.Fields) > 0 {
		fields, err = a.schema.CreateFieldLocatorsByGlob(req.Fields)
		if err != nil {
			return base.RequestParameters{}, nil, fmt.Errorf("fields%w", err)
		}
	}
	size := a.Source.Size()
	if req.From < 0 || req.From >= size {
		return base.RequestParameters{}, nil, fmt.Errorf("%w: from=%d size=%d", base.ErrEmptyRange, req.From, size)
	}
	count := req.Count
	if count <= 0 {
		count = size - req.From
	}
	threads := req.Threads
	if threads <= 0 {
		threads = a.Controller.MaximumThreads()
	}

	metadata := base.NewPatternMetadata(pattern, a.features.UML)
	return base.RequestParameters{
		Source:       a.Source,
		From:         req.From,
		Count:        count,
		Pattern:      pattern,
		PatternText:  req.Pattern,
		ThreadCount:  threads,
		Continuous:   req.Continuous,
		SearchFields: fields,
		Aliases:      metadata.Aliases(),
	}, metadata, nil
}
