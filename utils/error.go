package utils

import "errors"

// ErrorRecordNotFound hides gorm's not-found error from callers that should
// not know the storage layer.
var ErrorRecordNotFound = errors.New("record not found")
