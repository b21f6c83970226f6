// Package httprange parses single byte-range requests and computes the
// bounded response window served for them.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Unit is the only range unit understood by the service.
	Unit = "bytes"

	unitPrefix = Unit + "="
)

var (
	// ErrInvalidRange is returned for headers that cannot be parsed.
	ErrInvalidRange = errors.New("invalid range header")
	// ErrUnsatisfiable is returned when a parsed range lies outside the resource.
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// RangeRequest is the client's parsed range intent.
type RangeRequest struct {
	Unit string
	// Start is the zero-based first offset requested.
	Start int64
	// ClientEnd is the inclusive end the client sent, or -1 when absent.
	ClientEnd int64
}

// HasClientEnd reports whether the client supplied an end offset.
func (r *RangeRequest) HasClientEnd() bool {
	return r != nil && r.ClientEnd >= 0
}

func (r *RangeRequest) String() string {
	if r.HasClientEnd() {
		return fmt.Sprintf("%s=%d-%d", Unit, r.Start, r.ClientEnd)
	}
	return fmt.Sprintf("%s=%d-", Unit, r.Start)
}

// ParseRangeHeader parses a header of the form "bytes=<start>-[<end>]".
// Multi-range and suffix forms are rejected.
func ParseRangeHeader(raw string) (*RangeRequest, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(unitPrefix) || !strings.EqualFold(raw[:len(unitPrefix)], unitPrefix) {
		return nil, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, raw)
	}

	ranges := strings.TrimSpace(raw[len(unitPrefix):])
	if strings.Contains(ranges, ",") {
		return nil, fmt.Errorf("%w: multiple ranges are not supported", ErrInvalidRange)
	}

	startToken, endToken, found := strings.Cut(ranges, "-")
	if !found {
		return nil, fmt.Errorf("%w: missing '-' in %q", ErrInvalidRange, raw)
	}

	start, err := parseOffset(strings.TrimSpace(startToken))
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidRange, err)
	}

	req := &RangeRequest{Unit: Unit, Start: start, ClientEnd: -1}

	endToken = strings.TrimSpace(endToken)
	if endToken != "" {
		end, err := parseOffset(endToken)
		if err != nil {
			return nil, fmt.Errorf("%w: end: %v", ErrInvalidRange, err)
		}
		req.ClientEnd = end
	}

	return req, nil
}

// parseOffset accepts only unsigned decimal digits; strconv alone would allow a sign.
func parseOffset(token string) (int64, error) {
	if token == "" {
		return 0, errors.New("empty offset")
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q in offset", c)
		}
	}
	return strconv.ParseInt(token, 10, 64)
}
