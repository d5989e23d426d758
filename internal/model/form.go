package model

// Field describes one entry on the extracted-data form.
type Field struct {
	// Name is the key used in Invoice.Data.
	Name string
	// Label is what the review form shows.
	Label string
	// APIKey is the key the extraction service returns.
	APIKey string
	// Multiline fields render as a text area.
	Multiline bool
}

// FormFields is the ordered form layout.
var FormFields = []Field{
	{Name: "invoiceNumber", Label: "Invoice Number", APIKey: "invoice_number"},
	{Name: "invoiceDate", Label: "Invoice Date", APIKey: "invoice_date"},
	{Name: "dueDate", Label: "Due Date", APIKey: "due_date"},
	{Name: "vendor", Label: "Vendor", APIKey: "vendor_name"},
	{Name: "vendorAddress", Label: "Vendor Address", APIKey: "vendor_address"},
	{Name: "purchaseOrder", Label: "Purchase Order", APIKey: "purchase_order"},
	{Name: "accountNumber", Label: "Account Number", APIKey: "account_number"},
	{Name: "lineItems", Label: "Line Items", APIKey: "line_items", Multiline: true},
	{Name: "total", Label: "Total", APIKey: "total_amount"},
	{Name: "currency", Label: "Currency", APIKey: "currency"},
}

// EmptyForm returns a data map with every form field set to "".
func EmptyForm() map[string]string {
	out := make(map[string]string, len(FormFields))
	for _, f := range FormFields {
		out[f.Name] = ""
	}
	return out
}

// NormalizeForm keeps the known form fields from data and fills the rest
// with "". Unknown keys are dropped.
func NormalizeForm(data map[string]string) map[string]string {
	out := EmptyForm()
	for _, f := range FormFields {
		if v, ok := data[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}
