// Package edrclient builds and issues OGC EDR (Environmental Data
// Retrieval) queries against a collection of location-keyed observations,
// such as a METAR service. It owns URL construction, the temporal query
// mode, HTTP Basic authentication, TLS policy, and discovery of the
// collection's advertised locations. It knows nothing about load
// scheduling or statistics.
package edrclient
