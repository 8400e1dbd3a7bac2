// Package nhd reaches a NetworkHD matrix controller through its MQTT
// protocol bridge.
//
// The bridge process owns the controller's wire session; this package
// speaks JSON request/reply over the broker and implements the
// device.Client capability set the coordinator consumes:
//
//	coordinator ──▶ nhd.Client ──▶ MQTT broker ──▶ NetworkHD bridge ──▶ controller
//
// Requests carry a UUID correlation id and are answered on a per-request
// reply topic. Asynchronous controller notifications (endpoint online/
// offline, video found/lost, sink power) arrive on the bridge's notify
// topics and are decoded into typed device.Events.
//
// Thread safety: all methods are safe for concurrent use.
package nhd
