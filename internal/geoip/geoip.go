// Package geoip resolves client addresses to a coarse location for request
// logs. A resolver without a database answers every lookup with nothing.
package geoip

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Resolver struct {
	db *maxminddb.Reader
}

type Location struct {
	Country string
	City    string
}

type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// New opens the MaxMind database at dbPath. A missing or unreadable file
// disables geolocation instead of failing startup.
func New(dbPath string) *Resolver {
	if dbPath == "" {
		return &Resolver{}
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, geolocation disabled", "path", dbPath, "error", err)
		return &Resolver{}
	}
	slog.Info("geoip: loaded database", "path", dbPath, "type", db.Metadata.DatabaseType)
	return &Resolver{db: db}
}

func (r *Resolver) Enabled() bool {
	return r != nil && r.db != nil
}

func (r *Resolver) Lookup(ipStr string) (Location, error) {
	if !r.Enabled() || ipStr == "" {
		return Location{}, nil
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}, fmt.Errorf("geoip: invalid address %q", ipStr)
	}
	if ip.IsLoopback() || ip.IsPrivate() {
		return Location{}, nil
	}
	var record geoRecord
	if err := r.db.Lookup(ip, &record); err != nil {
		return Location{}, fmt.Errorf("geoip: lookup %s: %w", ipStr, err)
	}
	return Location{Country: record.Country.ISOCode, City: record.City.Names["en"]}, nil
}

func (r *Resolver) Close() error {
	if r.Enabled() {
		return r.db.Close()
	}
	return nil
}
