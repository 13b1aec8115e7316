// Package reactor provides the platform readiness facility behind
// api.Poller. Linux uses epoll in edge-triggered mode; other platforms
// get a stub whose constructor fails.
package reactor
