// Package analytics tracks site traffic: aggregate counters (total visitors,
// page views, registered users), per-visitor sightings keyed by a hash of IP
// and user agent, and the derived online-now count.
//
// Page views are recorded best-effort through a buffered queue so request
// handling never waits on storage. Sightings expire after a retention window
// and are pruned by a background loop. An optional InfluxDB sink mirrors each
// page view as a time-series point; the SQLite counters stay authoritative.
package analytics
