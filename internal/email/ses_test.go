package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type mockSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSendBuildsMessage(t *testing.T) {
	mock := &mockSES{}
	s, err := New(context.Background(), "us-east-1", "chores@example.com", "Choreboard", WithClient(mock))
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	if err := s.Send(context.Background(), "mom@example.com", "Chore submitted", "text", "<p>html</p>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.inputs) != 1 {
		t.Fatalf("calls = %d, want 1", len(mock.inputs))
	}
	in := mock.inputs[0]
	if got := aws.ToString(in.FromEmailAddress); got != "Choreboard <chores@example.com>" {
		t.Errorf("from = %q", got)
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "mom@example.com" {
		t.Errorf("to = %v", in.Destination.ToAddresses)
	}
	if got := aws.ToString(in.Content.Simple.Subject.Data); got != "Chore submitted" {
		t.Errorf("subject = %q", got)
	}
	if got := aws.ToString(in.Content.Simple.Body.Text.Data); got != "text" {
		t.Errorf("text body = %q", got)
	}
}

func TestSendDisabledWithoutSender(t *testing.T) {
	mock := &mockSES{}
	s, err := New(context.Background(), "us-east-1", "", "", WithClient(mock))
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if s.Configured() {
		t.Error("sender without from address should not be configured")
	}
	if err := s.Send(context.Background(), "mom@example.com", "x", "y", "z"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.inputs) != 0 {
		t.Errorf("calls = %d, want 0", len(mock.inputs))
	}
}

func TestSendWrapsClientError(t *testing.T) {
	boom := errors.New("throttled")
	s, _ := New(context.Background(), "us-east-1", "chores@example.com", "", WithClient(&mockSES{err: boom}))

	err := s.Send(context.Background(), "mom@example.com", "x", "y", "z")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if err := s.Send(context.Background(), " ", "x", "y", "z"); err == nil {
		t.Error("expected error for empty recipient")
	}
}
