package segment

import "log/slog"

type options struct {
	log *slog.Logger
}

type Option interface {
	apply(*options)
}

type loggerOption struct{ log *slog.Logger }

func (o loggerOption) apply(opts *options) {
	opts.log = o.log
}

// Default: slog.Default()
func WithLogger(log *slog.Logger) Option {
	return loggerOption{log: log}
}
