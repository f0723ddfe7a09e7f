package grading

import (
	"fmt"

	"github.com/okian/codeboard/internal/domain/model"
)

func unknownMetric(name string) error {
	return fmt.Errorf("%w: %q", model.ErrUnknownMetric, name)
}
