// Package httpapi is the node's ingress boundary: the one place HTTP
// status codes, JWT bearer tokens, and the role-permission matrix exist.
// Every handler translates a request into a call on a core package
// (pkg/orchestrator, pkg/killswitch, pkg/contributor, pkg/karma,
// pkg/eventstore) and translates that package's typed error back into the
// wire format — core packages never import this one and never know they
// are being driven over HTTP.
package httpapi
