package postgis

import (
	"net/url"
	"strconv"
	"time"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// MaxConns bounds the connection pool and therefore the number of
	// concurrent writers.
	MaxConns         int
	StatementTimeout time.Duration
}

func ConfigDefault() Config {
	return Config{
		Host:             "localhost",
		Port:             5432,
		User:             "postgres",
		Database:         "lemurion",
		SSLMode:          "disable",
		MaxConns:         10,
		StatementTimeout: time.Minute,
	}
}

func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.StatementTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10))
	}
	q.Set("application_name", "chorographer")
	u.RawQuery = q.Encode()
	return u.String()
}
