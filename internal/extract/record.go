// Package extract turns a classified OCR result into a typed record.
//
// Every field is optional: a nil pointer means the field was not found and
// marshals to JSON null. Partial records are a normal outcome, not an error.
package extract

// CheckRecord holds the fields read from a check
type CheckRecord struct {
	DocumentType  string  `json:"DocumentType"`
	CheckNumber   *string `json:"CheckNumber"`
	Date          *string `json:"Date"`
	PayeeName     *string `json:"PayeeName"`
	Amount        *string `json:"Amount"`
	AmountInWords *string `json:"AmountInWords"`
	Memo          *string `json:"Memo"`
	BankName      *string `json:"BankName"`
	RoutingNumber *string `json:"RoutingNumber"`
	AccountNumber *string `json:"AccountNumber"`
	PayerName     *string `json:"PayerName"`
	PayerAddress  *string `json:"PayerAddress"`
}

// InvoiceRecord holds the fields read from an invoice
type InvoiceRecord struct {
	DocumentType    string     `json:"DocumentType"`
	InvoiceID       *string    `json:"InvoiceId"`
	InvoiceDate     *string    `json:"InvoiceDate"`
	DueDate         *string    `json:"DueDate"`
	VendorName      *string    `json:"VendorName"`
	CustomerName    *string    `json:"CustomerName"`
	CustomerAddress *string    `json:"CustomerAddress"`
	InvoiceTotal    *string    `json:"InvoiceTotal"`
	Items           []LineItem `json:"Items"`
}

// LineItem is one row of an invoice, in the order the engine reported it
type LineItem struct {
	Description *string `json:"Description"`
	Quantity    *string `json:"Quantity"`
	UnitPrice   *string `json:"UnitPrice"`
	Amount      *string `json:"Amount"`
}

// unset mirrors the extraction rules' notion of "not found yet": absent or
// empty.
func unset(s *string) bool {
	return s == nil || *s == ""
}

func ptr(s string) *string {
	return &s
}
