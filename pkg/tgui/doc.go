// Package tgui provides small Telegram HTML helpers and a message builder
// that renders text plus URL buttons for a transport.Sender.
package tgui
