package services

import "time"

func SetConversationClock(s *ConversationService, now func() time.Time) { s.now = now }
func SetFriendClock(s *FriendService, now func() time.Time)             { s.now = now }
