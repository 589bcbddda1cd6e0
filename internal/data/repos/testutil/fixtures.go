package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/chatflow-backend/internal/domain"
	"github.com/yungbote/chatflow-backend/internal/domain/chatflow"
)

const SampleSchema = `{"fields":[` +
	`{"id":"f1","name":"fullName","label":"What is your name?","type":"text","required":true},` +
	`{"id":"f2","name":"email","label":"What is your email?","type":"email","required":true}]}`

func SeedChatflow(tb testing.TB, ctx context.Context, tx *gorm.DB, status chatflow.Status, schemaJSON string) *types.Chatflow {
	tb.Helper()
	if schemaJSON == "" {
		schemaJSON = "{}"
	}
	now := time.Now().UTC()
	cf := &types.Chatflow{
		ID:               uuid.New(),
		Name:             "Contact",
		Description:      "collect name and email",
		Schema:           datatypes.JSON([]byte(schemaJSON)),
		Status:           status,
		ShareToken:       uuid.NewString()[:10],
		GenerationStatus: chatflow.GenerationSucceeded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(cf).Error; err != nil {
		tb.Fatalf("seed chatflow: %v", err)
	}
	return cf
}
