package e2e

import (
	"context"
	"testing"

	"room-chat/client"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseWsSuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

func (s *testChatSuite) TestTwoClientsExchangeMessages() {
	room := "e2e-" + uuid.NewString()[:8]
	alice := s.Token("alice-"+room, "Alice")
	bob := s.Token("bob-"+room, "Bob")
	s.CreateRoom(alice, room, "Room "+room)

	s.WithClient("Alice joins", alice, func(ctx context.Context, a Session) {
		s.Require().NoError(a.Client.Join(ctx, room))
		joined := s.Expect(a, client.RoomJoined)
		s.Require().Equal(room, joined.Room.ID)

		s.WithClient("Bob joins and says hi", bob, func(ctx context.Context, b Session) {
			s.Require().NoError(b.Client.Join(ctx, room))
			s.Expect(b, client.RoomJoined)

			presence := s.Expect(a, client.UserJoined)
			s.Require().Equal("Bob", presence.UserName)

			s.Require().NoError(b.Client.Send(ctx, room, "hi"))
			message, ok := s.Expect(a, client.Message).ChatMessage()
			s.Require().True(ok)
			s.Require().Equal("hi", message.Content)
			s.Require().Equal("Bob", message.SenderName)
		})

		s.Require().Equal("Bob", s.Expect(a, client.UserLeft).UserName)
	})
}

func (s *testChatSuite) TestJoinUnknownRoom() {
	s.WithClient("Join a room nobody created", s.Token("carol", "Carol"), func(ctx context.Context, c Session) {
		s.Require().NoError(c.Client.Join(ctx, "missing-"+uuid.NewString()))
		s.Require().Equal("Room not found", s.Expect(c, client.Error).ErrorText())
	})
}
