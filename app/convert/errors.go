package convert

import "fmt"

// ProjectionError reports a vector file without a usable projection
// definition. The file is skipped, not the whole batch.
type ProjectionError struct {
	File string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("no usable projection for %s", e.File)
}

// EncodingError reports attribute data that cannot be decoded with the
// configured character set.
type EncodingError struct {
	File string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot decode attributes of %s: %v", e.File, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
