// Package command parses chat messages into reminder requests.
package command
