// Package storagekind enumerates the backend kinds a model can bind to and
// the per-kind connection conventions (default port, connection-string
// dialect) every adapter and the configuration loader share.
package storagekind

import (
	"fmt"
	"net/url"
	"time"
)

// Kind identifies a storage backend family.
type Kind string

const (
	Relational Kind = "RELATIONAL"
	Document   Kind = "DOCUMENT"
	Timeseries Kind = "TIMESERIES"
	Vector     Kind = "VECTOR"
	Graph      Kind = "GRAPH"
	Cache      Kind = "CACHE"
	File       Kind = "FILE"
)

// DefaultPort returns the conventional port for a backend kind. Vector and
// relational both default to Postgres' 5432; graph defaults to the gRPC
// port a Dgraph-style graph store exposes; document defaults to CouchDB's
// HTTP port; file defaults to HTTPS for S3-compatible endpoints.
func DefaultPort(k Kind) int {
	switch k {
	case Relational, Vector, Timeseries:
		return 5432
	case Graph:
		return 9080
	case Cache:
		return 6379
	case Document:
		return 5984
	case File:
		return 443
	default:
		return 0
	}
}

// BackendBinding is the configuration tying a named binding to one backend
// instance, per spec.md §3.
type BackendBinding struct {
	Kind             Kind
	Host             string
	Port             int
	Database         string
	Username         string
	Password         string
	Timeout          time.Duration
	Options          map[string]any
	ConnectionString string
}

// DSN formats the connection string an adapter's driver expects for this
// binding's kind. A caller-supplied ConnectionString always wins.
func (b BackendBinding) DSN() string {
	if b.ConnectionString != "" {
		return b.ConnectionString
	}
	port := b.Port
	if port == 0 {
		port = DefaultPort(b.Kind)
	}
	switch b.Kind {
	case Relational, Vector, Timeseries:
		return fmt.Sprintf("postgresql://%s", userHostDB(b, port, "sslmode=disable"))
	case Cache:
		u := url.URL{Scheme: "redis", Host: fmt.Sprintf("%s:%d", b.Host, port)}
		if b.Database != "" {
			u.Path = "/" + b.Database
		}
		if b.Password != "" {
			u.User = url.UserPassword(b.Username, b.Password)
		}
		return u.String()
	case Graph:
		return fmt.Sprintf("%s:%d", b.Host, port)
	case Document:
		scheme := "http"
		if _, ok := b.Options["tls"]; ok {
			scheme = "https"
		}
		u := url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", b.Host, port)}
		if b.Username != "" {
			u.User = url.UserPassword(b.Username, b.Password)
		}
		return u.String()
	case File:
		return fmt.Sprintf("https://%s", b.Host)
	default:
		return fmt.Sprintf("%s:%d", b.Host, port)
	}
}

func userHostDB(b BackendBinding, port int, params string) string {
	auth := ""
	if b.Username != "" {
		auth = b.Username
		if b.Password != "" {
			auth += ":" + b.Password
		}
		auth += "@"
	}
	return fmt.Sprintf("%s%s:%d/%s?%s", auth, b.Host, port, b.Database, params)
}
