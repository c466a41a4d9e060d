// Package notify delivers workflow events to downstream dispatchers.
//
// Every type here implements workflow.Publisher. LogPublisher writes events to a
// slog logger, ChannelPublisher fans events out to in-process subscribers,
// NATSPublisher publishes them to a JetStream stream, and AsyncPublisher decouples
// any of them from the engine with a buffered queue and retries.
package notify
