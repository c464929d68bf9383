package errors

import "fmt"

// Wrap adds context to an error at a package boundary. It returns nil for a
// nil error, so it is safe inline:
//
//	return errors.Wrap(loadRecipe(path), "loading recipe")
//
// The chain is preserved; errors.Is against the sentinels keeps working.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with format-string context:
//
//	return errors.Wrapf(err, "step %q", step.Name)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
