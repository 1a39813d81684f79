// Package eventing publishes repository change events.
//
// A Notifier wraps a submodel.Repository. Reads pass straight through;
// every mutating call that succeeds is followed by one Event handed to
// each configured Sink. Two sinks ship with the package: MQTTSink
// publishes on the sm-repository topic tree and HubSink forwards to the
// API's WebSocket hub.
//
// Delivery is best effort. A failing sink is logged and the remaining
// sinks still receive the event; the mutation itself has already been
// committed and its result is returned unchanged.
package eventing
