// Package api exposes the dubbing scheduler over HTTP. Submitter identity
// rides on the X-User-ID header; mutating endpoints additionally require the
// configured bearer token when one is set. Responses are JSON throughout.
package api
