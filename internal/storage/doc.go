// Package storage persists the bot's domain data: reminder candidates per
// domain (calendar, tasks, price alerts, travel documents) and the broadcast
// destination registry.
//
// The store owns candidate rows; the reminder layer only reads them and flips
// the one-way notified flag. MarkNotified is idempotent by construction
// (UPDATE ... WHERE notified = 0), so repeated marking is harmless.
package storage
