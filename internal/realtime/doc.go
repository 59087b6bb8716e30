// Package realtime connects the bridge to the Lumiere coordination channel.
//
// A Channel turns whatever transport carries the channel into a stream of
// named events ("connect", "lights", "reconnecting", "disconnect") and lets
// the bridge emit requests such as "lights:get". Two transports exist:
//
//   - SocketIO wraps a Socket.IO client on the default namespace, the way
//     the hosted Lumiere service publishes palettes.
//   - MQTTChannel maps the same events onto MQTT topics for local setups.
//
// Both transports reconnect on their own. Each reconnect attempt produces a
// "reconnecting" event and each successful reconnect a fresh "connect".
// When SocketIO gives up, Done is closed and Err returns a *ConnectionError.
package realtime
