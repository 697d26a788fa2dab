// internal/requestinfo/requestinfo.go
//
// Per-request metadata (user-agent fingerprint, IP + geolocation, URL,
// and timestamp) collected once and attached to the request context.
// The structs are inert: no database handles, no large buffers, safe to
// log or JSON-encode.

package requestinfo

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/yanizio/hoster/internal/ua"
)

// Geo holds IP-based geolocation hints.  Best-effort; empty when the
// GeoLite2 database is not configured or has no match.
type Geo struct {
	IP         net.IP // original client address, not the XFF chain
	CountryISO string // "US", "CA", "FR", ...
	City       string // "Chicago", "Paris", ...
}

// RequestInfo is what the Enrich middleware stores in the context.
type RequestInfo struct {
	UA        ua.Info
	Geo       Geo
	URL       *url.URL // pointer copy, safe to dereference read-only
	Timestamp time.Time
}

// geoReader is a process-wide MaxMind handle.  Safe for concurrent
// reads, which is all we ever perform.  nil disables the lookup.
var geoReader *geoip2.Reader

// InitGeo opens the GeoLite2-City database.  Call it from main() when
// geo.db_path is configured; errors are the caller's to handle.
func InitGeo(dbPath string) error {
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return err
	}
	geoReader = r
	return nil
}

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich, or nil
// when the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// lookupGeo returns best-effort Geo data using the global reader.
func lookupGeo(ip net.IP) Geo {
	if geoReader == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := geoReader.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{
		IP:         ip,
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}
