// Package geo provides best-effort IP geolocation for the redirect path.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the result of a geo lookup. Empty fields mean unknown.
type Location struct {
	Country string // ISO 3166-1 alpha-2
	City    string
}

// Resolver maps an IP address to a location. Implementations are
// best-effort: a nil location with a nil error means "unknown".
type Resolver interface {
	Lookup(ip string) (*Location, error)
	Close() error
}

// MaxMind resolves locations from a local MaxMind GeoIP2/GeoLite2 database.
type MaxMind struct {
	db *geoip2.Reader
}

// NewMaxMind opens a MaxMind database file.
func NewMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMind{db: db}, nil
}

// Lookup resolves an IP to country and city. Unparseable or unmapped IPs
// return nil without error.
func (m *MaxMind) Lookup(ip string) (*Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, nil
	}

	record, err := m.db.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip city lookup: %w", err)
	}
	if record == nil || record.Country.IsoCode == "" {
		return nil, nil
	}

	return &Location{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}, nil
}

// Close releases the underlying database.
func (m *MaxMind) Close() error {
	return m.db.Close()
}

// Unavailable is a Resolver used when no geo database is configured.
// Every lookup reports unknown.
type Unavailable struct{}

// Lookup always reports unknown.
func (Unavailable) Lookup(string) (*Location, error) { return nil, nil }

// Close is a no-op.
func (Unavailable) Close() error { return nil }
