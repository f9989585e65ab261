package document

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	checksSheet   = "Checks"
	invoicesSheet = "Invoices"
	itemsSheet    = "Items"
)

var (
	checkHeaders = []any{
		"Document ID", "Uploaded", "Filename",
		"Check Number", "Date", "Payee", "Amount", "Amount In Words", "Memo",
		"Bank", "Routing Number", "Account Number", "Payer", "Payer Address",
	}
	invoiceHeaders = []any{
		"Document ID", "Uploaded", "Filename",
		"Invoice ID", "Invoice Date", "Due Date", "Vendor", "Customer", "Customer Address",
		"Total", "Line Items",
	}
	itemHeaders = []any{
		"Document ID", "Invoice ID", "Line", "Description", "Quantity", "Unit Price", "Amount",
	}
)

// ExportXLSX writes every successfully extracted document to a workbook with
// one sheet for checks, one for invoices and one for invoice line items.
// Documents whose extraction failed are skipped.
func (s *Service) ExportXLSX(w io.Writer) error {
	start := time.Now()
	docs, err := s.db.ListDocuments()
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", checksSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, sheet := range []string{invoicesSheet, itemsSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx sheet: %w", err)
		}
	}

	rows := map[string]int{checksSheet: 1, invoicesSheet: 1, itemsSheet: 1}
	write := func(sheet string, values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, rows[sheet])
		if err != nil {
			return err
		}
		rows[sheet]++
		return f.SetSheetRow(sheet, cell, &values)
	}

	for sheet, headers := range map[string][]any{
		checksSheet:   checkHeaders,
		invoicesSheet: invoiceHeaders,
		itemsSheet:    itemHeaders,
	} {
		if err := write(sheet, headers); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	for _, doc := range docs {
		if doc.Result == nil {
			continue
		}
		uploaded := doc.CreatedAt.Format(time.RFC3339)

		if c := doc.Result.Check; c != nil {
			err := write(checksSheet, []any{
				doc.ID, uploaded, doc.Filename,
				val(c.CheckNumber), val(c.Date), val(c.PayeeName), val(c.Amount), val(c.AmountInWords), val(c.Memo),
				val(c.BankName), val(c.RoutingNumber), val(c.AccountNumber), val(c.PayerName), val(c.PayerAddress),
			})
			if err != nil {
				return fmt.Errorf("xlsx check row: %w", err)
			}
		}

		if inv := doc.Result.Invoice; inv != nil {
			err := write(invoicesSheet, []any{
				doc.ID, uploaded, doc.Filename,
				val(inv.InvoiceID), val(inv.InvoiceDate), val(inv.DueDate), val(inv.VendorName),
				val(inv.CustomerName), val(inv.CustomerAddress), val(inv.InvoiceTotal), len(inv.Items),
			})
			if err != nil {
				return fmt.Errorf("xlsx invoice row: %w", err)
			}
			for i, item := range inv.Items {
				err := write(itemsSheet, []any{
					doc.ID, val(inv.InvoiceID), i + 1,
					val(item.Description), val(item.Quantity), val(item.UnitPrice), val(item.Amount),
				})
				if err != nil {
					return fmt.Errorf("xlsx item row: %w", err)
				}
			}
		}
	}

	_ = f.SetColWidth(checksSheet, "A", "C", 24)
	_ = f.SetColWidth(checksSheet, "D", "N", 18)
	_ = f.SetColWidth(invoicesSheet, "A", "C", 24)
	_ = f.SetColWidth(invoicesSheet, "D", "K", 18)
	_ = f.SetColWidth(itemsSheet, "D", "D", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("Exported documents",
		"checks", rows[checksSheet]-2,
		"invoices", rows[invoicesSheet]-2,
		"items", rows[itemsSheet]-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func val(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
