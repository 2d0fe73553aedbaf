package batch

import "github.com/okian/filmport/pkg/logger"

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithSize sets the maximum number of records per bulk statement.
func WithSize(size int) Option {
	return func(w *Writer) {
		if size > 0 {
			w.size = size
		}
	}
}

// WithLogger sets a custom logger for the writer.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}
