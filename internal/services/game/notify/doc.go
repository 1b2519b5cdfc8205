// Package notify turns resolution outcomes into localized notifications and
// fans them out to websocket subscribers.
package notify
