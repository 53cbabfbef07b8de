package langserver

import (
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DocumentData holds the current text and latest diagnostics for one open
// document. Diagnostics reflect the most recent publish notification for the
// URI; they are not guaranteed to match the exact content version.
type DocumentData struct {
	URI         string
	Content     string
	Diagnostics []protocol.Diagnostic
}

// DocumentStore is a concurrent map of open documents keyed by URI. At most
// one entry exists per URI; all operations are atomic per key.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*DocumentData
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]*DocumentData),
	}
}

// Open inserts (or replaces) the document entry for uri with content.
func (s *DocumentStore) Open(uri, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &DocumentData{
		URI:     uri,
		Content: content,
	}
}

// Replace swaps the full content of an open document. No-op when the
// document is not open.
func (s *DocumentStore) Replace(uri, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[uri]; ok {
		doc.Content = content
	}
}

// SetDiagnostics replaces the diagnostics for uri, inserting a fresh entry
// when the document is not currently tracked (diagnostics may arrive after a
// close, or for files never opened by the front-end).
func (s *DocumentStore) SetDiagnostics(uri string, diagnostics []protocol.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		doc = &DocumentData{URI: uri}
		s.docs[uri] = doc
	}
	doc.Diagnostics = diagnostics
}

// Close removes the document entry for uri.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns a copy of the document data for uri.
func (s *DocumentStore) Get(uri string) (DocumentData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return DocumentData{}, false
	}
	return *doc, true
}

// Len returns the number of tracked documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// URIs returns the tracked document URIs.
func (s *DocumentStore) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	return uris
}
