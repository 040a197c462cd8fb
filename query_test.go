package mocktrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedFixture(t *testing.T) (*Tracer, []Span) {
	t.Helper()

	tracer := New(WithIDGenerator(NewSequentialIDGenerator()))
	t.Cleanup(tracer.Close)

	root := tracer.StartSpan("root").SetTag("http.method", "GET").SetTag("http.url", "/a")
	tracer.StartSpan("send", ChildOf(root)).SetTag(TagSpanKind, SpanKindRPCClient).SetTag("attempt", 1).Finish()
	tracer.StartSpan("send", ChildOf(root)).SetTag(TagSpanKind, SpanKindRPCClient).SetTag("attempt", 2).Finish()
	root.Finish()
	tracer.StartSpan("other").SetTag("http.method", "POST").Finish()

	return tracer, tracer.FinishedSpans()
}

func TestFindByOperationName(t *testing.T) {
	_, spans := finishedFixture(t)

	root, err := FindByOperationName(spans, "root")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "root", root.OperationName)

	missing, err := FindByOperationName(spans, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = FindByOperationName(spans, "send")
	require.ErrorIs(t, err, ErrAmbiguousLookup)
	assert.Contains(t, err.Error(), "2 spans match")
}

func TestFindByTag(t *testing.T) {
	_, spans := finishedFixture(t)

	second, err := FindByTag(spans, "attempt", 2)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "send", second.OperationName)

	post, err := FindByTag(spans, "http.method", "POST")
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "other", post.OperationName)

	none, err := FindByTag(spans, "http.method", "DELETE")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = FindByTag(spans, TagSpanKind, SpanKindRPCClient)
	assert.ErrorIs(t, err, ErrAmbiguousLookup)

	// Values of a different type never match.
	wrongType, err := FindByTag(spans, "attempt", "2")
	require.NoError(t, err)
	assert.Nil(t, wrongType)

	unsigned, err := FindByTag(spans, "attempt", uint(2))
	require.NoError(t, err)
	assert.Nil(t, unsigned)
}

func TestFindByTagExactValues(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	tracer.StartSpan("string").SetTag("n", "3").Finish()
	tracer.StartSpan("uint").SetTag("n", uint(3)).Finish()
	tracer.StartSpan("float32").SetTag("ratio", float32(0.1)).Finish()
	tracer.StartSpan("slice").SetTag("ids", []int{1, 2}).Finish()
	spans := tracer.FinishedSpans()

	byUint, err := FindByTag(spans, "n", uint(3))
	require.NoError(t, err)
	require.NotNil(t, byUint)
	assert.Equal(t, "uint", byUint.OperationName)

	byString, err := FindByTag(spans, "n", "3")
	require.NoError(t, err)
	require.NotNil(t, byString)
	assert.Equal(t, "string", byString.OperationName)

	byFloat, err := FindByTag(spans, "ratio", float32(0.1))
	require.NoError(t, err)
	require.NotNil(t, byFloat)
	assert.Equal(t, "float32", byFloat.OperationName)

	widened, err := FindByTag(spans, "ratio", float64(float32(0.1)))
	require.NoError(t, err)
	assert.Nil(t, widened)

	bySlice, err := FindByTag(spans, "ids", []int{1, 2})
	require.NoError(t, err)
	require.NotNil(t, bySlice)
	assert.Equal(t, "slice", bySlice.OperationName)
}

func TestFindReturnsPointerIntoSlice(t *testing.T) {
	_, spans := finishedFixture(t)

	root, err := FindByOperationName(spans, "root")
	require.NoError(t, err)
	assert.Same(t, &spans[2], root)
}

func TestCountTagsWithPrefix(t *testing.T) {
	_, spans := finishedFixture(t)

	root, err := FindByOperationName(spans, "root")
	require.NoError(t, err)

	assert.Equal(t, 2, CountTagsWithPrefix(*root, "http."))
	assert.Equal(t, 1, CountTagsWithPrefix(*root, "http.url"))
	assert.Equal(t, 0, CountTagsWithPrefix(*root, "db."))
	assert.Equal(t, 2, CountTagsWithPrefix(*root, ""))
}

func TestFilterByTraceAndChildren(t *testing.T) {
	_, spans := finishedFixture(t)

	root, err := FindByOperationName(spans, "root")
	require.NoError(t, err)

	trace := FilterByTrace(spans, root.Context.TraceID)
	assert.Len(t, trace, 3)

	children := ChildrenOf(spans, *root)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, "send", c.OperationName)
		assert.Equal(t, root.Context.SpanID, c.ParentID)
	}

	assert.Empty(t, ChildrenOf(spans, SpanContext{}))
	assert.Nil(t, ChildrenOf(spans, nil))
	assert.Nil(t, ChildrenOf(nil, nil))

	var running *ActiveSpan
	assert.Nil(t, ChildrenOf(spans, running))
}
