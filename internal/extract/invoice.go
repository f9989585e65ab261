package extract

import (
	"errors"

	"github.com/zombor/docscan/internal/ocr"
)

// ErrNoInvoiceData is returned when the engine produced no structured
// document for an invoice.
var ErrNoInvoiceData = errors.New("no invoice data found")

// Invoice flattens the first structured document of an OCR result into an
// invoice record.
func Invoice(result *ocr.Result) (*InvoiceRecord, error) {
	analysis, err := result.Analysis()
	if err != nil {
		return nil, err
	}
	if len(analysis.Documents) == 0 {
		return nil, ErrNoInvoiceData
	}

	fields := analysis.Documents[0].Fields
	rec := &InvoiceRecord{
		DocumentType:    "invoice",
		InvoiceID:       ocr.Content(fields, "InvoiceId"),
		InvoiceDate:     ocr.Content(fields, "InvoiceDate"),
		DueDate:         ocr.Content(fields, "DueDate"),
		VendorName:      ocr.Content(fields, "VendorName"),
		CustomerName:    ocr.Content(fields, "CustomerName"),
		CustomerAddress: ocr.Content(fields, "CustomerAddress"),
		InvoiceTotal:    ocr.Content(fields, "InvoiceTotal"),
		Items:           []LineItem{},
	}

	for _, item := range fields["Items"].ValueArray {
		row := item.ValueObject
		rec.Items = append(rec.Items, LineItem{
			Description: ocr.Content(row, "Description"),
			Quantity:    ocr.Content(row, "Quantity"),
			UnitPrice:   ocr.Content(row, "UnitPrice"),
			Amount:      ocr.Content(row, "Amount"),
		})
	}
	return rec, nil
}
