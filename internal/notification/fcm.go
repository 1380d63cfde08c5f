package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"skateQuestAPI/internal/types/notification"
)

type FCMService struct {
	client *messaging.Client
}

// NewFCMService initializes the Firebase messaging client. Credentials
// come from the FCM_SERVICE_ACCOUNT_JSON environment variable (base64
// encoded) with a local service account key file as fallback.
func NewFCMService(localFilePath string) (*FCMService, error) {
	var opt option.ClientOption

	encodedCreds := os.Getenv("FCM_SERVICE_ACCOUNT_JSON")
	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("FCM: initializing from FCM_SERVICE_ACCOUNT_JSON")
	} else {
		if _, err := os.Stat(localFilePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s, and FCM_SERVICE_ACCOUNT_JSON is not set", localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Printf("FCM: initializing from local file %s", localFilePath)
	}

	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendPush delivers the message to every token individually. The batch
// endpoint 404s on some projects, so one Send per token.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	stringData := make(map[string]string)
	for k, v := range data {
		stringData[k] = fmt.Sprintf("%v", v)
	}

	sent := 0
	failed := 0
	for _, t := range tokens {
		message := &messaging.Message{
			Token: t.Token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: stringData,
		}
		if t.Platform == "android" || t.Platform == "" {
			message.Android = &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			}
		}

		if _, err := s.client.Send(ctx, message); err != nil {
			log.Printf("FCM: failed to send to token %s: %v", t.Token, err)
			failed++
		} else {
			sent++
		}
	}

	log.Printf("FCM: sent %d messages, %d failed", sent, failed)
	if sent == 0 && failed > 0 {
		return fmt.Errorf("all push notifications failed")
	}
	return nil
}
