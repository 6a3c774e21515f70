// Package messaging carries profile update facts between API instances.
//
// Every write that touches a profile publishes a profile_updated fact to
// the shared "messages" topic on the broker. Every instance subscribes to
// the same topic and hands decoded facts to its WebSocket hub, which fans
// them out to that user's live sessions. An instance therefore sees its
// own facts too; fan-out is idempotent so this is harmless.
//
// The flow:
//
//	handler → Notifier → Publisher → broker → Subscriber → Deliverer (hub)
package messaging
