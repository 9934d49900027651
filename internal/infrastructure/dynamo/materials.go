package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/studyshare-api/internal/domain"
)

// MaterialRepo provides typed DynamoDB operations for the materials table.
type MaterialRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMaterialRepo(client *dynamodb.Client, tableName string) *MaterialRepo {
	return &MaterialRepo{client: client, tableName: tableName}
}

func (r *MaterialRepo) Put(ctx context.Context, m *domain.Material) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal material: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *MaterialRepo) Get(ctx context.Context, materialID string) (*domain.Material, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldMaterialID, materialID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("material not found: %w", domain.ErrNotFound)
	}
	var m domain.Material
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByOwner returns the materials uploaded by ownerID, newest first.
func (r *MaterialRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Material, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("owner_id-created_at-index"),
		KeyConditionExpression:    aws.String("owner_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": &types.AttributeValueMemberS{Value: ownerID}},
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	var items []domain.Material
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MaterialRepo) Delete(ctx context.Context, materialID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldMaterialID, materialID),
	})
	return err
}
