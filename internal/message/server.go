package message

import "orderup/internal/network"

func LoggedIn(playerID string) network.Message {
	return network.NewMessage(TypeLoggedIn, LoggedInPayload{PlayerID: playerID})
}

func RoomCreated(roomID string, count int) network.Message {
	return network.NewMessage(TypeRoomCreated, RoomCountPayload{RoomID: roomID, Count: count})
}

func RoomJoined(roomID string, count int) network.Message {
	return network.NewMessage(TypeRoomJoined, RoomCountPayload{RoomID: roomID, Count: count})
}

func JoinFailed(reason string) network.Message {
	return network.NewMessage(TypeJoinFailed, ReasonPayload{Reason: reason})
}

func PlayerJoined(roomID, playerID string, count int) network.Message {
	return network.NewMessage(TypePlayerJoined, MemberPayload{RoomID: roomID, PlayerID: playerID, Count: count})
}

func PlayerLeft(roomID, playerID string, count int) network.Message {
	return network.NewMessage(TypePlayerLeft, MemberPayload{RoomID: roomID, PlayerID: playerID, Count: count})
}

func StartFailed(reason string) network.Message {
	return network.NewMessage(TypeStartFailed, ReasonPayload{Reason: reason})
}

func SessionStarted(p SessionStartedPayload) network.Message {
	return network.NewMessage(TypeSessionStarted, p)
}

func StateSnapshot(p SnapshotPayload) network.Message {
	return network.NewMessage(TypeStateSnapshot, p)
}

func SessionEnded(p SessionEndedPayload) network.Message {
	return network.NewMessage(TypeSessionEnded, p)
}

func RoomDeleted(roomID, reason string) network.Message {
	return network.NewMessage(TypeRoomDeleted, RoomDeletedPayload{RoomID: roomID, Reason: reason})
}

func RoomList(rooms []RoomSummary) network.Message {
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	return network.NewMessage(TypeRoomList, RoomListPayload{Rooms: rooms})
}

func Leaderboard(entries []LeaderboardEntry) network.Message {
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return network.NewMessage(TypeLeaderboardRes, LeaderboardPayload{Entries: entries})
}

// Error is the generic failure reply for malformed or out-of-place requests.
func Error(reason string) network.Message {
	return network.NewMessage(TypeError, ReasonPayload{Reason: reason})
}

func Pong() network.Message {
	return network.NewMessage(TypePong, nil)
}
