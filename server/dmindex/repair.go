package dmindex

// roomLookup resolves a room ID to a room known to the client.
type roomLookup func(roomID string) (Room, bool)

// repairSelfAttributed moves rooms filed under the viewer's own user ID to the
// user each room most likely is a DM with. Rooms without a guess are filed
// under UnknownUserID so they stay marked as DMs. The input is not modified.
func repairSelfAttributed(content Content, selfID string, lookup roomLookup) (Content, bool) {
	selfRooms := content[selfID]
	if len(selfRooms) == 0 {
		return content, false
	}

	repaired := content.clone()
	delete(repaired, selfID)

	for _, roomID := range selfRooms {
		userID := UnknownUserID
		if room, ok := lookup(roomID); ok && room != nil {
			if guessed, ok := room.GuessDMUserID(); ok && guessed != selfID {
				userID = guessed
			}
		}
		repaired[userID] = append(repaired[userID], roomID)
	}

	return repaired, true
}
