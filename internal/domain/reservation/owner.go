package reservation

import (
	"strings"

	"github.com/erp/reservation/internal/domain/shared"
)

// OwnerRef identifies the business document holding a reservation, e.g. a quote or order
type OwnerRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NewOwnerRef creates a validated owner reference
func NewOwnerRef(docType, docID string) (OwnerRef, error) {
	ref := OwnerRef{Type: strings.TrimSpace(docType), ID: strings.TrimSpace(docID)}
	if err := ref.Validate(); err != nil {
		return OwnerRef{}, err
	}
	return ref, nil
}

// Validate checks that both parts are present and fit the storage columns
func (o OwnerRef) Validate() error {
	if o.Type == "" || o.ID == "" {
		return shared.NewDomainError(CodeInvalidOwner, "Owner reference requires a document type and id")
	}
	if len(o.Type) > 50 || len(o.ID) > 100 {
		return shared.NewDomainError(CodeInvalidOwner, "Owner reference is too long")
	}
	return nil
}

// String renders the reference as type/id
func (o OwnerRef) String() string {
	return o.Type + "/" + o.ID
}
