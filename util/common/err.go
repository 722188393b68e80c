package common

import (
	"errors"
	"fmt"

	"lottery/logger"
)

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

// Recover logs a recovered panic with msg as context. Use as `defer common.Recover("...")`.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}

// Combine joins the non-nil errors; nil when none are set.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}
