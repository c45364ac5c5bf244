package aggregate

import "github.com/farmalink/erpbridge/internal/domain"

// BatchState is the aggregator's working set for one input file: every
// document keyed and in first-seen order, the keys that accumulated at
// least one error, and the count of lines read. The successful and
// errored views are derived queries over one document map, so they can
// never drift apart. A key moves from successful to errored as later
// lines add errors, never back.
type BatchState struct {
	Module string
	File   string

	docs    map[string]*domain.Document
	order   []string
	errored map[string]struct{}
	lines   int
}

func NewBatchState(module, file string) *BatchState {
	return &BatchState{
		Module:  module,
		File:    file,
		docs:    make(map[string]*domain.Document),
		errored: make(map[string]struct{}),
	}
}

// Document returns the document for a key, if the batch has seen it.
func (b *BatchState) Document(key string) (*domain.Document, bool) {
	doc, ok := b.docs[key]
	return doc, ok
}

func (b *BatchState) add(doc *domain.Document) {
	b.docs[doc.Key] = doc
	b.order = append(b.order, doc.Key)
}

// MarkErrored moves a key into the errored set.
func (b *BatchState) MarkErrored(key string) {
	b.errored[key] = struct{}{}
}

// Errored reports whether a key has accumulated an error.
func (b *BatchState) Errored(key string) bool {
	_, ok := b.errored[key]
	return ok
}

// All returns every document in first-seen order.
func (b *BatchState) All() []*domain.Document {
	out := make([]*domain.Document, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.docs[key])
	}
	return out
}

// Successful returns the documents without errors, in first-seen order.
func (b *BatchState) Successful() []*domain.Document {
	out := make([]*domain.Document, 0, len(b.order))
	for _, key := range b.order {
		if !b.Errored(key) {
			out = append(out, b.docs[key])
		}
	}
	return out
}

// Failed returns the errored documents, in first-seen order.
func (b *BatchState) Failed() []*domain.Document {
	out := make([]*domain.Document, 0, len(b.errored))
	for _, key := range b.order {
		if b.Errored(key) {
			out = append(out, b.docs[key])
		}
	}
	return out
}

// Lines returns the number of input lines read into the batch.
func (b *BatchState) Lines() int { return b.lines }

// Records returns every source line grouped by document, documents in
// first-seen order.
func (b *BatchState) Records() []*domain.Record {
	out := make([]*domain.Record, 0, b.lines)
	for _, doc := range b.All() {
		out = append(out, doc.Records...)
	}
	return out
}
