package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logOut io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream. The MCP stdio transport owns
// stdout, so ServeMCP logs to stderr unless told otherwise.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

func newApplication(defaultOut io.Writer, opts []Option) *application {
	app := &application{logOut: defaultOut}
	for _, opt := range opts {
		opt(app)
	}
	if app.logOut == nil {
		app.logOut = os.Stdout
	}
	return app
}
