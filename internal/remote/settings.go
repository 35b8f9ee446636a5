package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// SettingsStore keeps each user's settings next to their records.
type SettingsStore interface {
	// UserSettings reports false when the user never saved settings remotely.
	UserSettings(ctx context.Context, userID string) (domain.Settings, bool, error)
	SaveUserSettings(ctx context.Context, userID string, s domain.Settings) error
}

var (
	_ SettingsStore = (*PostgresStore)(nil)
	_ SettingsStore = (*DynamoDBSettings)(nil)
)

func (s *PostgresStore) UserSettings(ctx context.Context, userID string) (domain.Settings, bool, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, `SELECT settings FROM user_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, false, nil
	}
	if err != nil {
		return domain.Settings{}, false, mapPostgresError("get settings", err)
	}
	st := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.Settings{}, false, &domain.RemoteError{Kind: domain.KindUnknown, Op: "get settings", Err: err}
	}
	return st, true, nil
}

func (s *PostgresStore) SaveUserSettings(ctx context.Context, userID string, st domain.Settings) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return &domain.RemoteError{Kind: domain.KindUnknown, Op: "save settings", Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, settings, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		userID, raw)
	return mapPostgresError("save settings", err)
}

// DynamoDBSettingsAPI is the part of the DynamoDB client the settings table uses.
type DynamoDBSettingsAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBSettings stores one item per user keyed by userId.
type DynamoDBSettings struct {
	svc   DynamoDBSettingsAPI
	table string
	now   func() time.Time
}

func NewDynamoDBSettings(svc DynamoDBSettingsAPI, table string) *DynamoDBSettings {
	return &DynamoDBSettings{svc: svc, table: table, now: time.Now}
}

type settingsItem struct {
	UserID                 string  `dynamodbav:"userId"`
	AnalysisThreshold      float64 `dynamodbav:"analysisThreshold"`
	AnalysisTimeRange      int     `dynamodbav:"analysisTimeRange"`
	AnalysisComparisonDays int     `dynamodbav:"analysisComparisonDays"`
	AutoSync               bool    `dynamodbav:"autoSync"`
	SyncOnDataEntry        bool    `dynamodbav:"syncOnDataEntry"`
	UpdatedAt              string  `dynamodbav:"updatedAt"`
}

func (d *DynamoDBSettings) UserSettings(ctx context.Context, userID string) (domain.Settings, bool, error) {
	out, err := d.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return domain.Settings{}, false, mapDynamoError("get settings", err)
	}
	if len(out.Item) == 0 {
		return domain.Settings{}, false, nil
	}

	var it settingsItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.Settings{}, false, &domain.RemoteError{Kind: domain.KindUnknown, Op: "get settings", Err: err}
	}
	return domain.Settings{
		AnalysisThreshold:      it.AnalysisThreshold,
		AnalysisTimeRange:      it.AnalysisTimeRange,
		AnalysisComparisonDays: it.AnalysisComparisonDays,
		AutoSync:               it.AutoSync,
		SyncOnDataEntry:        it.SyncOnDataEntry,
	}, true, nil
}

func (d *DynamoDBSettings) SaveUserSettings(ctx context.Context, userID string, st domain.Settings) error {
	item, err := attributevalue.MarshalMap(settingsItem{
		UserID:                 userID,
		AnalysisThreshold:      st.AnalysisThreshold,
		AnalysisTimeRange:      st.AnalysisTimeRange,
		AnalysisComparisonDays: st.AnalysisComparisonDays,
		AutoSync:               st.AutoSync,
		SyncOnDataEntry:        st.SyncOnDataEntry,
		UpdatedAt:              d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &domain.RemoteError{Kind: domain.KindUnknown, Op: "save settings", Err: err}
	}
	_, err = d.svc.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(d.table), Item: item})
	return mapDynamoError("save settings", err)
}
