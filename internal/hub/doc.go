// Package hub accepts websocket connections at /ws/eva, groups them by
// meeting, routes client commands onto each meeting's serial lane, and fans
// lane events back out to every attached client in identical order.
package hub
