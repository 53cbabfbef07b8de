package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

func TestSentinelWrapping(t *testing.T) {
	err := Wrapf(ErrUnsupportedLanguage, "language %q has no adapter", "cobol")

	assert.True(t, Is(err, ErrUnsupportedLanguage))
	assert.False(t, Is(err, ErrUnrecognizedLanguage))
	assert.Contains(t, err.Error(), "cobol")
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrPathNotFound,
		ErrUnsupportedLanguage,
		ErrUnrecognizedLanguage,
		ErrProcessSpawn,
		ErrDisconnected,
		ErrPortBindFailure,
		ErrResponseParse,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "sentinel %v should not match %v", a, b)
		}
	}
}

func TestRemoteError(t *testing.T) {
	remote := &RemoteError{Code: -32601, Message: "method not found"}
	wrapped := Wrap(remote, "textDocument/hover failed")

	got, ok := IsRemoteError(wrapped)
	require.True(t, ok)
	assert.Equal(t, -32601, got.Code)
	assert.Equal(t, "method not found", got.Message)
	assert.Contains(t, remote.Error(), "method not found")
}

func TestIsRemoteErrorNegative(t *testing.T) {
	_, ok := IsRemoteError(New("plain error"))
	assert.False(t, ok)

	_, ok = IsRemoteError(nil)
	assert.False(t, ok)
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "try this fix")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	// Format with stack trace
	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func ExampleWrap() {
	baseErr := New("connection failed")
	err := Wrap(baseErr, "failed to reach analyzer")
	fmt.Println(err)
	// Output: failed to reach analyzer: connection failed
}
