// Package protocol defines the typed, namespaced JSON message contract
// (scrum_*, team_*) spoken between the daemon and browser clients.
//
// Every wire message is a JSON object with a required "type" string. Unknown
// types are ignored by design so the wire format can drift forward and
// backward without breaking old clients.
package protocol
