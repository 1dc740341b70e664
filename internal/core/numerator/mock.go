package numerator

import "context"

// MockNumberer is a test implementation of Numberer.
// Use in unit tests of document services to avoid storage dependencies.
type MockNumberer struct {
	PreviewFunc   func(ctx context.Context, documentType string) string
	ReserveFunc   func(ctx context.Context, documentType, proposed string) (Reservation, error)
	ReconcileFunc func(ctx context.Context, documentType, number string)
	SaveFunc      func(ctx context.Context, doc Numbered, persist func(ctx context.Context) error) (Reservation, error)
}

// Preview implements Numberer.
func (m *MockNumberer) Preview(ctx context.Context, documentType string) string {
	if m.PreviewFunc != nil {
		return m.PreviewFunc(ctx, documentType)
	}
	return "MOCK-1001"
}

// Reserve implements Numberer.
func (m *MockNumberer) Reserve(ctx context.Context, documentType, proposed string) (Reservation, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, documentType, proposed)
	}
	return Reservation{DocumentType: documentType, Number: "MOCK-1001", Mode: ModeAutomatic, Source: SourceAllocated}, nil
}

// Reconcile implements Numberer.
func (m *MockNumberer) Reconcile(ctx context.Context, documentType, number string) {
	if m.ReconcileFunc != nil {
		m.ReconcileFunc(ctx, documentType, number)
	}
}

// Save implements Numberer. Without SaveFunc it reserves through Reserve,
// runs persist once and marks the document persisted.
func (m *MockNumberer) Save(ctx context.Context, doc Numbered, persist func(ctx context.Context) error) (Reservation, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, doc, persist)
	}
	r, err := m.Reserve(ctx, doc.GetDocumentType(), doc.GetNumber())
	if err != nil {
		return Reservation{}, err
	}
	if err := doc.MarkReserved(r); err != nil {
		return Reservation{}, err
	}
	if err := persist(ctx); err != nil {
		return Reservation{}, err
	}
	return r, doc.MarkPersisted()
}

// Ensure compile-time interface compliance.
var _ Numberer = (*MockNumberer)(nil)
