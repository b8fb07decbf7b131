package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint/types"
	"github.com/rs/zerolog"

	"flipside/internal/pkg/logx"
)

const emailSubject = "Your verification code"

// PinpointConfig holds the Pinpoint project and originator settings.
type PinpointConfig struct {
	ProjectID         string
	OriginationNumber string
	MessageType       string
	FromEmail         string
}

// pinpointAPI is the part of *pinpoint.Client the sender uses.
type pinpointAPI interface {
	SendMessages(ctx context.Context, params *pinpoint.SendMessagesInput, optFns ...func(*pinpoint.Options)) (*pinpoint.SendMessagesOutput, error)
}

// PinpointSender sends SMS and email through AWS Pinpoint.
type PinpointSender struct {
	api    pinpointAPI
	cfg    PinpointConfig
	logger zerolog.Logger
}

// NewPinpointSender creates a sender from an AWS SDK configuration.
func NewPinpointSender(awsCfg aws.Config, cfg PinpointConfig) (*PinpointSender, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("pinpoint project id is required")
	}
	return newPinpointSender(pinpoint.NewFromConfig(awsCfg), cfg), nil
}

func newPinpointSender(api pinpointAPI, cfg PinpointConfig) *PinpointSender {
	if cfg.MessageType == "" {
		cfg.MessageType = string(types.MessageTypeTransactional)
	}
	return &PinpointSender{
		api:    api,
		cfg:    cfg,
		logger: logx.Component("notify"),
	}
}

// Send delivers text to address over the SMS or EMAIL channel.
func (s *PinpointSender) Send(ctx context.Context, address, text string) error {
	out, err := s.api.SendMessages(ctx, &pinpoint.SendMessagesInput{
		ApplicationId:  aws.String(s.cfg.ProjectID),
		MessageRequest: s.messageRequest(address, text),
	})
	if err != nil {
		return fmt.Errorf("pinpoint send: %w", err)
	}

	if out.MessageResponse == nil {
		return errors.New("pinpoint send: empty response")
	}

	result, ok := out.MessageResponse.Result[address]
	if !ok {
		return errors.New("pinpoint send: no result for address")
	}

	s.logger.Info().
		Str("delivery_status", string(result.DeliveryStatus)).
		Bool("email", IsEmail(address)).
		Msg("Verification message dispatched")

	if result.DeliveryStatus != types.DeliveryStatusSuccessful {
		return fmt.Errorf("pinpoint delivery status %s: %s", result.DeliveryStatus, aws.ToString(result.StatusMessage))
	}
	return nil
}

func (s *PinpointSender) messageRequest(address, text string) *types.MessageRequest {
	if IsEmail(address) {
		return &types.MessageRequest{
			Addresses: map[string]types.AddressConfiguration{
				address: {ChannelType: types.ChannelTypeEmail},
			},
			MessageConfiguration: &types.DirectMessageConfiguration{
				EmailMessage: &types.EmailMessage{
					FromAddress: aws.String(s.cfg.FromEmail),
					SimpleEmail: &types.SimpleEmail{
						Subject:  &types.SimpleEmailPart{Charset: aws.String("UTF-8"), Data: aws.String(emailSubject)},
						TextPart: &types.SimpleEmailPart{Charset: aws.String("UTF-8"), Data: aws.String(text)},
					},
				},
			},
		}
	}

	return &types.MessageRequest{
		Addresses: map[string]types.AddressConfiguration{
			address: {ChannelType: types.ChannelTypeSms},
		},
		MessageConfiguration: &types.DirectMessageConfiguration{
			SMSMessage: &types.SMSMessage{
				Body:              aws.String(text),
				MessageType:       types.MessageType(s.cfg.MessageType),
				OriginationNumber: aws.String(s.cfg.OriginationNumber),
			},
		},
	}
}
