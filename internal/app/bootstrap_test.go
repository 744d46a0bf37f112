package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate/entities/models"

	"docuchat/internal/app"
)

type flakySchemaClient struct {
	failUntil int
	calls     int
}

func (c *flakySchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	c.calls++
	if c.calls <= c.failUntil {
		return false, errors.New("connection refused")
	}
	return true, nil
}

func (c *flakySchemaClient) CreateClass(ctx context.Context, class *models.Class) error { return nil }

func (c *flakySchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return &models.Class{Class: className, Properties: []*models.Property{
		{Name: "content"}, {Name: "documentId"}, {Name: "pageNumber"},
		{Name: "chunkIndex"}, {Name: "startOffset"}, {Name: "endOffset"},
	}}, nil
}

func (c *flakySchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return nil
}

func TestEnsureSchemaWithRetry_Success(t *testing.T) {
	client := &flakySchemaClient{}
	err := app.EnsureSchemaWithRetry(context.Background(), client, 1, time.Millisecond)
	assert.NoError(t, err)
}

func TestEnsureSchemaWithRetry_Retries(t *testing.T) {
	client := &flakySchemaClient{failUntil: 2}
	err := app.EnsureSchemaWithRetry(context.Background(), client, 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, client.calls)
}

func TestEnsureSchemaWithRetry_Exhausted(t *testing.T) {
	client := &flakySchemaClient{failUntil: 100}
	err := app.EnsureSchemaWithRetry(context.Background(), client, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, client.calls)
}
