package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/landmark/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func TestSESNotifier_NotifyNewInquiry(t *testing.T) {
	var sent *ses.SendEmailInput
	client := &MockSESClient{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		sent = params
		return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
	}}
	n := NewSESNotifierWithClient(client, "noreply@landmark.test", []string{"sales@landmark.test"}, DiscardLogger())

	msg := "Interested in the 3-bed unit"
	err := n.NotifyNewInquiry(context.Background(), &models.Inquiry{
		ID: "i-1", Name: "Buyer", Phone: "09121234567", Source: models.SourceWebsite, Message: &msg,
	})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "noreply@landmark.test", aws.ToString(sent.Source))
	assert.Equal(t, []string{"sales@landmark.test"}, sent.Destination.ToAddresses)
	assert.Equal(t, "New inquiry from Buyer", aws.ToString(sent.Message.Subject.Data))
	assert.Contains(t, aws.ToString(sent.Message.Body.Text.Data), "09121234567")
	assert.Contains(t, aws.ToString(sent.Message.Body.Text.Data), msg)
}

func TestSESNotifier_NoRecipients(t *testing.T) {
	client := &MockSESClient{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		t.Fatal("SendEmail should not be called")
		return nil, nil
	}}
	n := NewSESNotifierWithClient(client, "noreply@landmark.test", nil, DiscardLogger())
	assert.NoError(t, n.NotifyNewInquiry(context.Background(), &models.Inquiry{ID: "i-1"}))
}

func TestSESNotifier_SendFailure(t *testing.T) {
	client := &MockSESClient{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, errors.New("throttled")
	}}
	n := NewSESNotifierWithClient(client, "noreply@landmark.test", []string{"sales@landmark.test"}, DiscardLogger())

	err := n.NotifyNewInquiry(context.Background(), &models.Inquiry{ID: "i-1", Name: "B", Phone: "09121234567"})
	assert.ErrorContains(t, err, "throttled")
}
