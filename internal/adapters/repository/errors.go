package repository

import (
	"errors"
	"fmt"

	"github.com/okian/codeboard/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrDuplicateStudent = fmt.Errorf("%w: student already exists", model.ErrInvalidInput)
	ErrClosed           = errors.New("store closed")
)

func studentNotFound(id string) error {
	return fmt.Errorf("%w: student %s", model.ErrNotFound, id)
}

func linkNotFound(id string, p model.Platform) error {
	return fmt.Errorf("%w: link %s/%s", model.ErrNotFound, id, p)
}

func notificationNotFound(id string) error {
	return fmt.Errorf("%w: notification %s", model.ErrNotFound, id)
}
