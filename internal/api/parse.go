package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/FocuswithJustin/Scribe/core/errors"
	"github.com/FocuswithJustin/Scribe/core/ir"
	"github.com/FocuswithJustin/Scribe/core/plugins"
	"github.com/FocuswithJustin/Scribe/internal/cache"
	"github.com/FocuswithJustin/Scribe/internal/logging"
	"github.com/FocuswithJustin/Scribe/internal/server"
	"github.com/FocuswithJustin/Scribe/internal/validation"
)

// ParseRequest asks for one document to be parsed. With no Format the
// dialect is detected from Name and the source.
type ParseRequest struct {
	Format string `json:"format,omitempty"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
	Spans  *bool  `json:"spans,omitempty"`
}

// parse runs req through the result cache and the reader registry and
// returns the encoded ir.Report.
func (s *Server) parse(ctx context.Context, req ParseRequest) (data []byte, cached bool, err error) {
	if validation.LooksBinary([]byte(req.Source)) {
		return nil, false, errors.NewValidation("source", "binary content is not markup")
	}
	format := req.Format
	if format == "" {
		det := plugins.DetectBytes(req.Name, []byte(req.Source))
		if !det.Detected {
			return nil, false, errors.NewValidation("format", "cannot detect format: "+det.Reason)
		}
		format = det.Format
	}
	if !server.ValidateIdentifier(format) {
		return nil, false, errors.NewValidation("format", "invalid format name")
	}

	opts := s.cfg.ParseOptions
	if req.Spans != nil {
		opts.PreserveSourceInfo = *req.Spans
	}
	key := cache.Key(format, opts, []byte(req.Source))
	if data, ok := s.results.Get(key); ok {
		return data, true, nil
	}

	start := time.Now()
	res, err := plugins.Parse(format, req.Source, opts)
	if err != nil {
		logging.ParseFailed(ctx, format, req.Name, err)
		return nil, false, err
	}
	for _, w := range res.Warnings {
		logging.FidelityWarning(ctx, format, w)
	}
	logging.ParseFinished(ctx, format, len(req.Source), len(res.Warnings), time.Since(start))

	data, err = json.Marshal(ir.NewReport(format, res))
	if err != nil {
		return nil, false, err
	}
	s.results.Put(key, data)
	return data, false, nil
}

// errorStatus maps a parse error to an HTTP status and API error code.
func errorStatus(err error) (int, string) {
	var pe *errors.ParseError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case errors.ParseUnsupportedFormat:
			return http.StatusBadRequest, "UNSUPPORTED_FORMAT"
		case errors.ParseInvalid:
			return http.StatusUnprocessableEntity, "PARSE_ERROR"
		}
		return http.StatusInternalServerError, "PARSE_FAILED"
	}
	if errors.Is(err, errors.ErrInvalidInput) {
		return http.StatusBadRequest, "INVALID_REQUEST"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
