// Package internal contains the implementation packages for popcode.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - project: the immutable project record, its languages and file format
//   - layout: per-editor flex geometry for minimize and maximize
//   - validation: per-language validators and the aggregation rule
//   - export: the gist export pipeline and its result types
//   - session: login, logout and the unload guard
//   - workspace: the controller that owns all state and serializes events
//   - store, gists, auth: persistence and the remote collaborators
//   - notifications, instructions: user-facing messages and markdown
//   - server, websocket: the HTTP surface and read-model push
//   - watcher, tui: on-disk project sync and the terminal front end
//   - config, logging, errors, version: ambient infrastructure
//
// # Inter-Package Communication
//
// Every state change goes through workspace.Controller.Dispatch. Front ends
// (the browser over websocket, the terminal UI, the file watcher) send
// events and receive a versioned ReadModel through Subscribe.
package internal
