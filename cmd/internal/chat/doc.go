// Package chat is the REST side of the global chat room: history, admin
// delete-all and the online user list, plus Room, the local view that both
// REST results and realtime frames are folded into.
package chat
