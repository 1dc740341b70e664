package numerator

// Document types known to the numbering engine. Any other string is accepted
// and falls back to generic defaults.
const (
	SalesInvoice    = "SalesInvoice"
	SalesQuote      = "SalesQuote"
	SalesOrder      = "SalesOrder"
	PurchaseInvoice = "PurchaseInvoice"
	Payment         = "Payment"
	JournalEntry    = "JournalEntry"
	StockMovement   = "StockMovement"
	StockItems      = "StockItems"
	Shipment        = "Shipment"
	PurchaseReceipt = "PurchaseReceipt"
	PricingRule     = "PricingRule"
)

const (
	// DefaultStart is the first value of a series created without an explicit start.
	DefaultStart int64 = 1001
	// DefaultPadWidth is the zero-padding applied when none is configured.
	DefaultPadWidth = 4
	// DefaultMaxAttempts bounds allocateNext.
	DefaultMaxAttempts = 10

	genericSeriesPrefix = "NS-"
	genericAbbreviation = "Doc"
)

var seriesPrefixes = map[string]string{
	SalesInvoice:    "SINV-",
	SalesQuote:      "SQ-",
	SalesOrder:      "SO-",
	PurchaseInvoice: "PINV-",
	Payment:         "PAY-",
	JournalEntry:    "JE-",
	StockMovement:   "SM-",
	StockItems:      "SI-",
	Shipment:        "SHP-",
	PurchaseReceipt: "PR-",
	PricingRule:     "PRC-",
}

var abbreviations = map[string]string{
	SalesInvoice:    "Sale",
	SalesQuote:      "Quote",
	SalesOrder:      "Order",
	PurchaseInvoice: "Purchase",
	Payment:         "Pay",
	JournalEntry:    "JE",
	StockMovement:   "Stock",
	Shipment:        "Ship",
}

var displayNames = map[string]string{
	SalesInvoice:    "Sales Invoice",
	SalesQuote:      "Sales Quotation",
	SalesOrder:      "Sales Order",
	PurchaseInvoice: "Purchase Invoice",
	Payment:         "Payment",
	JournalEntry:    "Journal Entry",
	StockMovement:   "Stock Movement",
	Shipment:        "Shipment",
}

// DefaultSeriesPrefix returns the prefix used for a series created without an id.
func DefaultSeriesPrefix(documentType string) string {
	if p, ok := seriesPrefixes[documentType]; ok {
		return p
	}
	return genericSeriesPrefix
}

// DefaultAbbreviation returns the display prefix a new configuration gets when none is given.
func DefaultAbbreviation(documentType string) string {
	if a, ok := abbreviations[documentType]; ok {
		return a
	}
	return genericAbbreviation
}

// DisplayName returns a human label for the document type.
func DisplayName(documentType string) string {
	if n, ok := displayNames[documentType]; ok {
		return n
	}
	return documentType
}

// SeededDocumentTypes are the types that receive a configuration on first setup.
func SeededDocumentTypes() []string {
	return []string{SalesInvoice, SalesQuote, SalesOrder}
}
