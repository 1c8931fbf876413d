package infra

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/quera/domain/model"
)

type DynamoDB struct {
	db *dynamodb.Client
}

var tableNamePrefix = "quera"
var queryTableName = tableNamePrefix + "_queries"

const assignedToIndexName = "AssignedToIndex"

func NewDynamoDB() (*DynamoDB, error) {
	if os.Getenv("DYNAMO_TABLE_NAME_PREFIX") != "" {
		tableNamePrefix = os.Getenv("DYNAMO_TABLE_NAME_PREFIX")
		queryTableName = tableNamePrefix + "_queries"
	}
	if os.Getenv("DYNAMO_QUERY_TABLE_NAME") != "" {
		queryTableName = os.Getenv("DYNAMO_QUERY_TABLE_NAME")
	}
	var db *dynamodb.Client
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String("http://localhost:8000")
			},
		)
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg)
	}
	d := &DynamoDB{
		db: db,
	}
	if os.Getenv("DYNAMO_LOCAL") != "" {
		if err := d.EnsureTable(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second // ポーリング間隔
	maxRetries   = 30              // 最大リトライ回数 (30回 = 約1分)
)

func (d *DynamoDB) EnsureTable() error {
	_, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
		TableName: aws.String(queryTableName),
	})
	if err == nil {
		// テーブルが既に存在する
		return nil
	}

	if err := d.createTable(); err != nil {
		return err
	}

	// テーブルがACTIVEになるまで待機
	for i := 0; i < maxRetries; i++ {
		out, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
			TableName: aws.String(queryTableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %v", queryTableName, err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		time.Sleep(waitInterval)
	}

	return fmt.Errorf("table %s creation timed out", queryTableName)
}

func (d *DynamoDB) createTable() error {
	createTableInput := &dynamodb.CreateTableInput{
		TableName: aws.String(queryTableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("assigned_to"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(assignedToIndexName),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("assigned_to"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(5),
					WriteCapacityUnits: aws.Int64(5),
				},
			},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	}

	if _, err := d.db.CreateTable(context.TODO(), createTableInput); err != nil {
		return fmt.Errorf("failed to create table %s: %v", queryTableName, err)
	}

	return nil
}

func (d *DynamoDB) SaveQuery(query *model.Query) error {
	now := timeNow()
	if query.CreatedAt.IsZero() {
		query.CreatedAt = now
	}
	query.UpdatedAt = now

	item := map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: query.ID},
		"sender":     &types.AttributeValueMemberS{Value: query.Sender},
		"channel":    &types.AttributeValueMemberS{Value: query.Channel},
		"message":    &types.AttributeValueMemberS{Value: query.Message},
		"category":   &types.AttributeValueMemberS{Value: query.Category},
		"priority":   &types.AttributeValueMemberN{Value: strconv.Itoa(query.Priority)},
		"status":     &types.AttributeValueMemberS{Value: query.Status},
		"created_at": &types.AttributeValueMemberS{Value: query.CreatedAt.Format(time.RFC3339Nano)},
		"updated_at": &types.AttributeValueMemberS{Value: query.UpdatedAt.Format(time.RFC3339Nano)},
	}
	// GSIのキー属性は空文字を書けないので未割り当ての間は持たせない
	if query.AssignedTo != "" {
		item["assigned_to"] = &types.AttributeValueMemberS{Value: query.AssignedTo}
	}

	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(queryTableName),
		Item:      item,
	})
	return err
}

func (d *DynamoDB) GetQuery(id string) (*model.Query, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(queryTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	}

	result, err := d.db.GetItem(context.TODO(), input)
	if err != nil {
		return nil, err
	}

	if result.Item == nil {
		return nil, nil
	}

	return itemToQuery(result.Item)
}

func (d *DynamoDB) LatestQueries(limit int) ([]model.Query, error) {
	queries, err := d.scanQueries()
	if err != nil {
		return nil, err
	}
	// Dynamoでうまいことソートできないのでここでソート
	sort.Slice(queries, func(i, j int) bool {
		return queries[i].CreatedAt.After(queries[j].CreatedAt)
	})
	return truncateQueries(queries, limit), nil
}

func (d *DynamoDB) ActiveQueries(limit int) ([]model.Query, error) {
	all, err := d.scanQueries()
	if err != nil {
		return nil, err
	}
	var queries []model.Query
	for _, q := range all {
		if q.Status != model.StatusClosed {
			queries = append(queries, q)
		}
	}
	sort.Slice(queries, func(i, j int) bool {
		return queries[i].Priority > queries[j].Priority
	})
	return truncateQueries(queries, limit), nil
}

func (d *DynamoDB) AssignedQueries(actorID string, limit int) ([]model.Query, error) {
	queries, err := d.queriesByAssignee(actorID, []string{model.StatusAssigned, model.StatusInProgress})
	if err != nil {
		return nil, err
	}
	sort.Slice(queries, func(i, j int) bool {
		return queries[i].Priority > queries[j].Priority
	})
	return truncateQueries(queries, limit), nil
}

func (d *DynamoDB) SolvedQueries(actorID string, limit int) ([]model.Query, error) {
	queries, err := d.queriesByAssignee(actorID, []string{model.StatusResolved, model.StatusClosed})
	if err != nil {
		return nil, err
	}
	sort.Slice(queries, func(i, j int) bool {
		return queries[i].UpdatedAt.After(queries[j].UpdatedAt)
	})
	return truncateQueries(queries, limit), nil
}

func (d *DynamoDB) AllQueries() ([]model.Query, error) {
	return d.scanQueries()
}

func (d *DynamoDB) queriesByAssignee(actorID string, statuses []string) ([]model.Query, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(queryTableName),
		IndexName:              aws.String(assignedToIndexName),
		KeyConditionExpression: aws.String("assigned_to = :assigned_to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":assigned_to": &types.AttributeValueMemberS{Value: actorID},
		},
	}

	result, err := d.db.Query(context.TODO(), input)
	if err != nil {
		return nil, err
	}

	var queries []model.Query
	for _, item := range result.Items {
		query, err := itemToQuery(item)
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			if query.Status == s {
				queries = append(queries, *query)
				break
			}
		}
	}
	return queries, nil
}

func (d *DynamoDB) scanQueries() ([]model.Query, error) {
	var queries []model.Query
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName: aws.String(queryTableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.TODO())
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			query, err := itemToQuery(item)
			if err != nil {
				return nil, err
			}
			queries = append(queries, *query)
		}
	}
	return queries, nil
}

func itemToQuery(item map[string]types.AttributeValue) (*model.Query, error) {
	createdAtStr := getStringValue(item, "created_at")
	if createdAtStr == "" {
		return nil, fmt.Errorf("created_at is empty")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at (%s): %v", createdAtStr, err)
	}

	updatedAt := createdAt
	if s := getStringValue(item, "updated_at"); s != "" {
		updatedAt, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at (%s): %v", s, err)
		}
	}

	priority, err := getNumberValue(item, "priority")
	if err != nil {
		return nil, fmt.Errorf("failed to parse priority: %v", err)
	}

	return &model.Query{
		ID:         getStringValue(item, "id"),
		Sender:     getStringValue(item, "sender"),
		Channel:    getStringValue(item, "channel"),
		Message:    getStringValue(item, "message"),
		Category:   getStringValue(item, "category"),
		Priority:   priority,
		Status:     getStringValue(item, "status"),
		AssignedTo: getStringValue(item, "assigned_to"),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func truncateQueries(queries []model.Query, limit int) []model.Query {
	if limit > 0 && len(queries) > limit {
		return queries[:limit]
	}
	return queries
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.Atoi(v.Value)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}
