package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Store access errors
	ErrStoreNotFound   = fmt.Errorf("store not found")
	ErrStoreUnreadable = fmt.Errorf("store unreadable")
	ErrStoreCorrupt    = fmt.Errorf("store corrupt")
	ErrStoreLocked     = fmt.Errorf("store locked")

	// Merge errors
	ErrSchemaMismatch       = fmt.Errorf("no common columns")
	ErrIdentityUnresolved   = fmt.Errorf("identity unresolved")
	ErrForeignKeyUnresolved = fmt.Errorf("foreign key unresolved")
	ErrUniqueExpected       = fmt.Errorf("row already merged")
	ErrUniqueUnexpected     = fmt.Errorf("constraint violation")
	ErrPreconditionBlocked  = fmt.Errorf("conflicting job active")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
