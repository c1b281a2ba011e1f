package service

import (
	"github.com/maribelle/backoffice/internal/domain"
)

// Batch validation errors. The single not-found error deliberately covers
// wrong id, wrong owner, and already-validated: the loader's filter cannot
// tell them apart and callers get no oracle for probing other users' batches.
var (
	ErrBatchNotFound     = domain.Errorf(domain.ENOTFOUND, "", "Delivery batch not found or already validated")
	ErrEmptyBatch        = domain.Errorf(domain.EINVALID, "", "Delivery batch has no items")
	ErrBatchClaimed      = domain.Errorf(domain.ECONFLICT, "", "Batch validation already in progress")
	ErrNoShippingAddress = domain.Errorf(domain.EINVALID, "", "Delivery batch has no shipping address")
	ErrProfileNotFound   = domain.Errorf(domain.ENOTFOUND, "", "Customer profile not found")
)
