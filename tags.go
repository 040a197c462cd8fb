package mocktrace

import (
	"fmt"
	"math"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
)

// Conventional tag keys and values.
const (
	TagSpanKind  Tag = "span.kind"
	TagComponent Tag = "component"
	TagError     Tag = "error"

	SpanKindRPCClient = "client"
	SpanKindRPCServer = "server"
	SpanKindProducer  = "producer"
	SpanKindConsumer  = "consumer"
)

// tagEqual compares two tag values with Go equality. Values of different
// dynamic types never match; non-comparable values such as slices are
// compared deeply instead of panicking.
func tagEqual(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if !ta.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// toAttribute converts a value to its OpenTelemetry form, used for event
// fields and for Span.Attributes.
// Anything that is not a scalar is kept in its fmt form.
func toAttribute(value any) attribute.Value {
	switch v := value.(type) {
	case attribute.Value:
		return v
	case string:
		return attribute.StringValue(v)
	case bool:
		return attribute.BoolValue(v)
	case int:
		return attribute.IntValue(v)
	case int8:
		return attribute.Int64Value(int64(v))
	case int16:
		return attribute.Int64Value(int64(v))
	case int32:
		return attribute.Int64Value(int64(v))
	case int64:
		return attribute.Int64Value(v)
	case uint8:
		return attribute.Int64Value(int64(v))
	case uint16:
		return attribute.Int64Value(int64(v))
	case uint32:
		return attribute.Int64Value(int64(v))
	case uint:
		return uintAttribute(uint64(v))
	case uint64:
		return uintAttribute(v)
	case uintptr:
		return uintAttribute(uint64(v))
	case float32:
		return attribute.Float64Value(float64(v))
	case float64:
		return attribute.Float64Value(v)
	case []string:
		return attribute.StringSliceValue(v)
	case []bool:
		return attribute.BoolSliceValue(v)
	case []int:
		return attribute.IntSliceValue(v)
	case []int64:
		return attribute.Int64SliceValue(v)
	case []float64:
		return attribute.Float64SliceValue(v)
	case fmt.Stringer:
		return attribute.StringValue(v.String())
	default:
		return attribute.StringValue(fmt.Sprint(v))
	}
}

// uintAttribute keeps values above MaxInt64 in decimal string form, since
// OpenTelemetry has no unsigned kind.
func uintAttribute(v uint64) attribute.Value {
	if v > math.MaxInt64 {
		return attribute.StringValue(fmt.Sprint(v))
	}
	return attribute.Int64Value(int64(v))
}

func copyTags(tags map[Tag]any) map[Tag]any {
	if tags == nil {
		return nil
	}
	out := make(map[Tag]any, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
