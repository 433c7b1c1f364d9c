package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ChelseaChanu/taskSync/internal/util"
)

// DocumentStore is a collection/document database with server-assigned
// timestamps. Query results come back in insertion order.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, value any) (Document, error)
	Create(ctx context.Context, collection string, value any) (Document, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
		switch f.Op {
		case OpEqual, OpArrayContains:
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return nil
}

// encodeWithID marshals value as a JSON object and sets its "id" member.
func encodeWithID(value any, id string) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	encodedID, _ := json.Marshal(id)
	fields["id"] = encodedID
	return json.Marshal(fields)
}

func newDocumentID() string {
	return util.NewID()
}

// rawJSON scans a JSON column regardless of whether the driver reports it as
// text or bytes.
type rawJSON json.RawMessage

func (r *rawJSON) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*r = append((*r)[:0], v...)
	case string:
		*r = rawJSON(v)
	case nil:
		*r = nil
	default:
		return fmt.Errorf("scan json: unsupported type %T", src)
	}
	return nil
}
