package mirror

import "errors"

// ErrNotRegular is returned when the mirrored path exists but is not a
// regular file.
var ErrNotRegular = errors.New("mirror: not a regular file")
