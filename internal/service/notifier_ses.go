package service

import (
	"context"
	"fmt"
	"log/slog"

	"go_5_course_keep/internal/config"
	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI は sesv2.Client のうち使う部分だけです (テストで差し替える)。
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier はイベントを AWS SES のメールとして受講者に送ります。
type SESNotifier struct {
	client sesAPI
	cfg    *config.SESConfig
}

// NewSESNotifier は設定に応じて認証方法を切り替えてSESクライアントを生成します
func NewSESNotifier(cfg *config.Config) *SESNotifier {
	var awsCfgOpts []func(*awsconfig.LoadOptions) error
	awsCfgOpts = append(awsCfgOpts, awsconfig.WithRegion(cfg.SES.Region))

	switch cfg.SES.AuthType {
	case "static_credentials":
		slog.Info("Configuring SES with static credentials.")
		if cfg.SES.AccessKeyID == "" || cfg.SES.SecretAccessKey == "" {
			slog.Error("SES auth_type is 'static_credentials' but access_key_id or secret_access_key is missing in config.")
			panic("missing static credentials for SES")
		}
		creds := credentials.NewStaticCredentialsProvider(
			cfg.SES.AccessKeyID,
			cfg.SES.SecretAccessKey,
			"",
		)
		awsCfgOpts = append(awsCfgOpts, awsconfig.WithCredentialsProvider(creds))

	case "iam_role":
		// SDK が自動で認証情報を探す
		slog.Info("Configuring SES with IAM Role credentials.")

	default:
		slog.Warn("Unknown SES auth_type specified, defaulting to IAM Role.", "type", cfg.SES.AuthType)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsCfgOpts...)
	if err != nil {
		slog.Error("Failed to load AWS config for SES", "error", err)
		panic(err)
	}

	return &SESNotifier{
		client: sesv2.NewFromConfig(awsCfg),
		cfg:    &cfg.SES,
	}
}

func (n *SESNotifier) Notify(ctx context.Context, event *model.Event) error {
	logger := middleware.GetLogger(ctx)

	// 受講者IDからメールアドレスを引くのは外部のユーザー管理の責務。ここでは規約上のアドレスを使う
	to := fmt.Sprintf("%s@%s", event.StudentID, n.cfg.RecipientDomain)
	subject, body := eventMessage(event)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.cfg.From),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		logger.Error("Failed to send event email via SES", "error", err, "to", to, "type", event.Type)
		return err
	}

	logger.Info("Event email sent via SES", "to", to, "type", event.Type)
	return nil
}

func eventMessage(event *model.Event) (string, string) {
	switch event.Type {
	case model.EventExerciseCompleted:
		return "エクササイズを完了しました", fmt.Sprintf("「%s」を完了しました。", event.Title)
	case model.EventModuleUnlocked:
		return "新しいモジュールが利用可能です", fmt.Sprintf("「%s」が利用可能になりました。", event.Title)
	default:
		return string(event.Type), event.Title
	}
}
