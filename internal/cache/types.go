// Package cache is a keyed cache of remote query results with in-flight
// de-duplication, tag-based invalidation and keep-alive eviction.
package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Call is one remote call.
type Call struct {
	Method   string
	Endpoint string
	Params   url.Values
	Body     any
}

// Fetcher performs remote calls. Implementations classify failures with
// apperr and attach credentials themselves.
type Fetcher interface {
	Fetch(ctx context.Context, call Call) (json.RawMessage, error)
}

// Tag labels cached data so mutations can invalidate it. A Tag with an
// empty ID is a bare type tag.
type Tag struct {
	Type string
	ID   string
}

// TypeTag returns the bare tag for typ.
func TypeTag(typ string) Tag {
	return Tag{Type: typ}
}

// IDTag returns the tag for one record of typ.
func IDTag(typ, id string) Tag {
	return Tag{Type: typ, ID: id}
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// Request describes a query.
type Request struct {
	Endpoint string
	Params   url.Values

	// Tags are attached to the entry and matched by invalidations.
	Tags []Tag

	// KeepAlive is how long the entry outlives its last subscriber.
	// Zero uses the cache default.
	KeepAlive time.Duration
}

// Key returns the canonical cache key of the request. Params are encoded
// sorted by name, so identical requests collide.
func (r Request) Key() string {
	return Key(r.Endpoint, r.Params)
}

func (r Request) call() Call {
	return Call{Method: http.MethodGet, Endpoint: r.Endpoint, Params: r.Params}
}

// Key builds a canonical key from an endpoint and its params.
func Key(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

// State is the lifecycle state of a cache entry.
type State int

const (
	Idle State = iota
	Fetching
	Fulfilled
	Rejected
	Stale
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}
