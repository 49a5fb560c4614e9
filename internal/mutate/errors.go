package mutate

import (
	"errors"
	"fmt"

	"shopadmin/internal/cache"
)

var ErrNothingToRetry = errors.New("no failed change to retry")

func successMessage(op cache.Op, name string) string {
	switch op {
	case cache.OpCreate:
		return fmt.Sprintf("%s is created successfully", name)
	case cache.OpUpdate:
		return fmt.Sprintf("%s is updated", name)
	default:
		return fmt.Sprintf("%s is deleted successfully", name)
	}
}

// defaultFailureMessage is used when the server did not supply a message.
func defaultFailureMessage(op cache.Op, label string) string {
	switch op {
	case cache.OpCreate:
		return label + " creation failed"
	case cache.OpUpdate:
		return label + " update failed"
	default:
		return label + " deletion failed"
	}
}

func goneMessage(name string) string {
	return fmt.Sprintf("%s no longer exists", name)
}
