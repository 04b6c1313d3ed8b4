package core

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// PayloadKind enumerates the response envelopes the domain backends are known to send.
type PayloadKind int

const (
	// PayloadBare is a document without a data envelope: the document is the data.
	PayloadBare PayloadKind = iota
	// PayloadWrapped is an object carrying a "data" key (usually {code, message, data}).
	PayloadWrapped
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadBare:
		return "bare"
	case PayloadWrapped:
		return "wrapped"
	}
	return "unknown"
}

// Payload is a decoded upstream JSON response.
type Payload struct {
	Kind PayloadKind
	Body json.RawMessage // the whole document
	Data json.RawMessage // the data portion; same as Body when bare
}

var errEmptyPayload = errors.New("empty upstream body")

// ParsePayload classifies raw as one of the known envelope variants.
func ParsePayload(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Payload{}, errEmptyPayload
	}
	if !json.Valid(raw) {
		return Payload{}, errors.New("upstream body is not valid JSON")
	}

	body := json.RawMessage(raw)
	if fields := Fields(body); fields != nil {
		if data, ok := fields["data"]; ok {
			return Payload{Kind: PayloadWrapped, Body: body, Data: data}, nil
		}
	}
	return Payload{Kind: PayloadBare, Body: body, Data: body}, nil
}

// Total extracts a pagination total. Lookup order: top-level "total", "data.total",
// then "pagination.total", "page.total" and "meta.total".
func (p Payload) Total() (int, bool) {
	top := Fields(p.Body)
	if n, ok := numberField(top, "total"); ok {
		return int(n), true
	}

	switch p.Kind {
	case PayloadWrapped:
		if n, ok := numberField(Fields(p.Data), "total"); ok {
			return int(n), true
		}
	case PayloadBare:
		// data is the body, already checked
	}

	for _, key := range []string{"pagination", "page", "meta"} {
		if n, ok := numberField(Fields(top[key]), "total"); ok {
			return int(n), true
		}
	}
	return 0, false
}

func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	return toNumber(raw)
}
