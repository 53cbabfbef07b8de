package langserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestDocumentOpenChangeRead(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///src/main.rs"

	store.Open(uri, "fn main() {}")
	store.Replace(uri, "fn main() { println!(\"hi\"); }")

	doc, ok := store.Get(uri)
	require.True(t, ok)
	assert.Equal(t, "fn main() { println!(\"hi\"); }", doc.Content, "read must return the changed text, not the opened text")
}

func TestDocumentCloseRemovesEntry(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///src/lib.rs"

	store.Open(uri, "pub fn f() {}")
	store.SetDiagnostics(uri, []protocol.Diagnostic{{Message: "stale warning"}})
	store.Close(uri)

	_, ok := store.Get(uri)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestDiagnosticsAfterCloseCreateFreshEntry(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///src/lib.rs"

	store.Open(uri, "old content")
	store.SetDiagnostics(uri, []protocol.Diagnostic{{Message: "old"}})
	store.Close(uri)

	// Diagnostics arriving after close create a fresh entry with no content
	store.SetDiagnostics(uri, []protocol.Diagnostic{{Message: "new"}})

	doc, ok := store.Get(uri)
	require.True(t, ok)
	assert.Empty(t, doc.Content, "fresh entry must not reuse stale content")
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, "new", doc.Diagnostics[0].Message)
}

func TestDiagnosticsReplaceNotAppend(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///src/main.rs"

	store.Open(uri, "fn main() {}")
	store.SetDiagnostics(uri, []protocol.Diagnostic{{Message: "first"}, {Message: "second"}})
	store.SetDiagnostics(uri, []protocol.Diagnostic{{Message: "third"}})

	doc, ok := store.Get(uri)
	require.True(t, ok)
	require.Len(t, doc.Diagnostics, 1)
	assert.Equal(t, "third", doc.Diagnostics[0].Message)
}

func TestReplaceUnopenedIsNoOp(t *testing.T) {
	store := NewDocumentStore()
	store.Replace("file:///never-opened.rs", "content")
	assert.Equal(t, 0, store.Len())
}

func TestReopenReplacesEntry(t *testing.T) {
	store := NewDocumentStore()
	uri := "file:///src/main.rs"

	store.Open(uri, "v1")
	store.SetDiagnostics(uri, []protocol.Diagnostic{{Message: "old"}})
	store.Open(uri, "v2")

	doc, ok := store.Get(uri)
	require.True(t, ok)
	assert.Equal(t, "v2", doc.Content)
	assert.Empty(t, doc.Diagnostics, "reopen must not carry stale diagnostics")
	assert.Equal(t, 1, store.Len())
}
