package source

import "github.com/okian/filmport/pkg/logger"

// Option applies a configuration option to the Reader.
type Option func(*Reader)

// WithLogger sets a custom logger for the reader.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}
