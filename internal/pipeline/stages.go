package pipeline

// Stage names as string constants. A store's pipeline is an ordered subset
// of these; "next stage" is purely positional in the store's own list.
const (
	ScanValidation    = "scan_validation"
	OCRExtraction     = "ocr_extraction"
	UpdatePreparation = "update_preparation"
	InventoryUpdate   = "inventory_update"
	ExcelExport       = "excel_export"
)

// Job lifecycle events published to listeners.
const (
	EventActive    = "active"
	EventCompleted = "completed"
	EventFailed    = "failed"
)
