// In file: internal/version/version.go

// Package version centralizes the schema versions baked into shared cache keys.
//
// Redis entries outlive deployments. Including these version strings in every
// key means a change to the stored shape (for example a new field on
// weather.Record) only needs a bump here; old entries stop matching and age
// out on their own.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComponentVersions holds the version strings for each cached payload type.
// Increment one before deploying a change to the corresponding shape.
var ComponentVersions = struct {
	// WeatherRecord covers weather.Record and the cache entry wrapper.
	WeatherRecord string

	// Geocode covers weather.GeocodeResult.
	Geocode string

	// Usage covers the telemetry counter hash layout.
	Usage string
}{
	WeatherRecord: "v1",
	Geocode:       "v1",
	Usage:         "v1",
}

func versionFor(prefix string) string {
	switch prefix {
	case "geocode":
		return ComponentVersions.Geocode
	case "usage":
		return ComponentVersions.Usage
	default:
		return ComponentVersions.WeatherRecord
	}
}

// Namespace returns "<prefix>:<version>" for keys that hold collections.
//
// Example output: "weathercache:v1"
func Namespace(prefix string) string {
	return fmt.Sprintf("%s:%s", prefix, versionFor(prefix))
}

// GenerateVersionedCacheKey hashes key and combines it with the prefix and
// its component version.
//
// Example output: "geocode:v1:a1b2c3d4..."
func GenerateVersionedCacheKey(prefix, key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return fmt.Sprintf("%s:%s", Namespace(prefix), hex.EncodeToString(hasher.Sum(nil)))
}
