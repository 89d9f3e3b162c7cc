package tools

import "fmt"

// ProductNotFoundError means a correction referenced a product id missing
// from the store's catalog.
type ProductNotFoundError struct {
	StoreID   string
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found in catalog of store %s", e.ProductID, e.StoreID)
}

// ItemNotFoundError means a correction referenced a row number the document
// does not have.
type ItemNotFoundError struct {
	DocumentID string
	RowNumber  string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("row %s not found in document %s", e.RowNumber, e.DocumentID)
}
