package service

import (
	"errors"
	"fmt"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/model"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
)

var (
	ErrNotFound          = repository.ErrNotFound
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDuplicateSequence = errors.New("duplicate milestone sequence")
	ErrOverBudget        = errors.New("milestones exceed contract value")
	ErrIncompleteBilling = errors.New("milestones not fully paid")

	ErrNegativeBalance        = model.ErrNegativeBalance
	ErrInvalidStatus          = model.ErrInvalidStatus
	ErrAttachmentCommitFailed = attachment.ErrCommitFailed
	ErrConcurrencyConflict    = repository.ErrConflict
)

// notFound adds the entity to a not-found error and passes others through.
func notFound(err error, entity string, id fmt.Stringer) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return err
}
