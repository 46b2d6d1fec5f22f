// Package notify fans committed AccessControl and token notifications out to
// live watchers such as the gateway's event stream.
package notify
