// Package session manages live meetings. Each meeting gets a serial
// processing lane shared by its facilitation engine and team coordinator,
// created lazily when the first client attaches and retired after an idle
// timeout once the last client leaves and no session is active.
package session
