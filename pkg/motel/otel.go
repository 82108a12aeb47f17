// Package motel collects the small OpenTelemetry span helpers repeated at
// every adapter call site, grounded on the teacher's
// common/mopentelemetry/otel.go (HandleSpanError, SetSpanAttributesFromStruct).
package motel

import (
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandleSpanError records err on span and sets its status to Error, prefixed
// with message.
func HandleSpanError(span *trace.Span, message string, err error) {
	(*span).SetStatus(codes.Error, message+": "+err.Error())
	(*span).RecordError(err)
}

// SetSpanAttributesFromStruct JSON-encodes valueStruct and attaches it to
// span under key.
func SetSpanAttributesFromStruct(span *trace.Span, key string, valueStruct any) error {
	data, err := json.Marshal(valueStruct)
	if err != nil {
		return err
	}

	(*span).SetAttributes(attribute.KeyValue{
		Key:   attribute.Key(key),
		Value: attribute.StringValue(string(data)),
	})

	return nil
}
