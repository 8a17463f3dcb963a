// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// MailSend caps the wait time for a single delivery-channel send.
const MailSend = 10 * time.Second

// QueueDrain limits how long the dispatch queue waits for in-flight
// notification tasks during graceful shutdown.
const QueueDrain = 15 * time.Second

// Shutdown limits how long a server waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
