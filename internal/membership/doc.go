// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package membership stores which users belong to which scenarios, and with
what role (owner, gm or player).

The realtime handshake only admits a connection when the token's user is a
member of the requested scenario. Membership itself is owned by the CRUD
service; it pushes grants and revocations through the internal API and this
package keeps a local BadgerDB copy so the handshake never leaves the process.

Usage:

	store, err := membership.Open(cfg.Membership)
	if err != nil {
	    return err
	}
	defer store.Close()

	_ = store.Grant(ctx, "scn-1", "user-1", membership.RoleGM)
	role, err := store.Role(ctx, "scn-1", "user-1")
*/
package membership
