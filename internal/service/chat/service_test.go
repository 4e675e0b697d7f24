package chat_test

import (
	"context"
	"errors"
	"testing"

	modelchat "github.com/webhelpdesk/helpdesk/internal/model/chat"
	chat "github.com/webhelpdesk/helpdesk/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.Transcript() != session.Transcript() {
		t.Fatal("session transcript must be shared")
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceLoadTranscript(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	session.Transcript().Append("hi", modelchat.AuthorUser)
	session.Transcript().Append("Hello", modelchat.AuthorBot)

	messages, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(messages) != 2 || messages[0].Author != modelchat.AuthorUser || messages[1].Text != "Hello" {
		t.Fatalf("unexpected transcript %+v", messages)
	}
}

func TestServiceCloseSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	if svc.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.Count())
	}

	if err := svc.CloseSession(ctx, session.ID); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if err := svc.CloseSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("second close should fail, got %v", err)
	}
	if _, err := svc.LoadTranscript(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("closed session transcript should be gone, got %v", err)
	}
}
